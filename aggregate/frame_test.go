package aggregate

import (
	"context"
	"testing"

	"github.com/kbukum/viewkit/errors"
)

func TestEnterView(t *testing.T) {
	ctx := context.Background()
	if f := FrameFromContext(ctx); f.Depth != 0 || len(f.Views) != 0 {
		t.Fatalf("top-level frame = %+v", f)
	}

	a, err := EnterView(ctx, "a", 4)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EnterView(a, "b", 4)
	if err != nil {
		t.Fatal(err)
	}
	f := FrameFromContext(b)
	if f.Depth != 2 || len(f.Views) != 2 || f.Views[0] != "a" || f.Views[1] != "b" {
		t.Errorf("frame = %+v", f)
	}
	if parent := FrameFromContext(a); len(parent.Views) != 1 {
		t.Errorf("entering a child modified the parent frame: %+v", parent)
	}

	_, err = EnterView(b, "a", 4)
	assertCode(t, err, errors.ErrCodeCyclicViewReference)

	deep := ctx
	for _, name := range []string{"v1", "v2"} {
		if deep, err = EnterView(deep, name, 2); err != nil {
			t.Fatal(err)
		}
	}
	_, err = EnterView(deep, "v3", 2)
	assertCode(t, err, errors.ErrCodeCyclicViewReference)
}

func TestEnterNested(t *testing.T) {
	ctx, err := EnterView(context.Background(), "a", 2)
	if err != nil {
		t.Fatal(err)
	}
	nested, err := enterNested(ctx, "$lookup", 2)
	if err != nil {
		t.Fatal(err)
	}
	if f := FrameFromContext(nested); f.Depth != 2 || len(f.Views) != 1 {
		t.Errorf("nested frame = %+v", f)
	}
	_, err = enterNested(nested, "$lookup", 2)
	assertCode(t, err, errors.ErrCodeCyclicViewReference)
}
