package collection

import (
	"context"
	"fmt"
	"testing"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/stream"
)

func docs(t *testing.T, text string) []*document.Document {
	t.Helper()
	out, err := document.ParseDocuments([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func ids(ds []*document.Document) []any {
	out := make([]any, len(ds))
	for i, d := range ds {
		out[i] = d.ID()
	}
	return out
}

func TestMemory_ScanSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("c", docs(t, `[{"_id": 1}, {"_id": 2}]`)...)
	it, err := m.Scan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Insert(ctx, document.MustParseDocument(`{"_id": 3}`)); err != nil {
		t.Fatal(err)
	}
	got, err := stream.CollectIter(ctx, it)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("scan saw %d documents, want the 2 present at scan start", len(got))
	}
	if m.Len() != 3 {
		t.Errorf("Len = %d, want 3", m.Len())
	}
}

func TestMemory_FindEqual(t *testing.T) {
	ctx := context.Background()
	data := `[
		{"_id": 1, "k": 5},
		{"_id": 2, "k": [5, 6]},
		{"_id": 3, "k": null},
		{"_id": 4},
		{"_id": 5, "k": [5, 5]},
		{"_id": 6, "k": 6}
	]`
	tests := []struct {
		name string
		key  string
		want []float64
	}{
		{"scalar matches scalars and elements", `5`, []float64{1, 2, 5}},
		{"other element", `6`, []float64{2, 6}},
		{"null matches only null", `null`, []float64{3}},
		{"whole array", `[5, 6]`, []float64{2}},
		{"no match", `7`, nil},
	}
	for _, indexed := range []bool{false, true} {
		m := NewMemory("c", docs(t, data)...)
		if indexed {
			if err := m.CreateIndex(ctx, "k"); err != nil {
				t.Fatal(err)
			}
		}
		if m.HasIndex("k") != indexed {
			t.Fatalf("HasIndex = %v, want %v", m.HasIndex("k"), indexed)
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := m.FindEqual(ctx, "k", document.MustParse(tt.key))
				if err != nil {
					t.Fatal(err)
				}
				if len(got) != len(tt.want) {
					t.Fatalf("indexed=%v: got ids %v, want %v", indexed, ids(got), tt.want)
				}
				for i, d := range got {
					if d.Get("_id").NumberValue() != tt.want[i] {
						t.Errorf("indexed=%v: got ids %v, want %v", indexed, ids(got), tt.want)
						break
					}
				}
			})
		}
	}
}

func TestMemory_IndexMaintainedOnInsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("c")
	if err := m.CreateIndex(ctx, "a.b"); err != nil {
		t.Fatal(err)
	}
	if err := m.Insert(ctx, docs(t, `[{"_id": 1, "a": {"b": "x"}}, {"_id": 2, "a": [{"b": "x"}, {"b": "y"}]}]`)...); err != nil {
		t.Fatal(err)
	}
	got, _ := m.FindEqual(ctx, "a.b", document.String("x"))
	if len(got) != 2 {
		t.Errorf("got %v, want ids [1 2]", ids(got))
	}
}

func TestMemory_FindEqualManyKeys(t *testing.T) {
	ctx := context.Background()
	data := `[
		{"_id": 1, "k": "b"},
		{"_id": 2, "k": ["a", "b"]},
		{"_id": 3, "k": "a"}
	]`
	for _, indexed := range []bool{false, true} {
		m := NewMemory("c", docs(t, data)...)
		if indexed {
			if err := m.CreateIndex(ctx, "k"); err != nil {
				t.Fatal(err)
			}
		}
		got, err := m.FindEqual(ctx, "k", document.String("b"), document.String("a"), document.MustParse(`["a", "b"]`))
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(ids(got)) != "[1 2 3]" {
			t.Errorf("indexed=%v: got ids %v, want [1 2 3]", indexed, ids(got))
		}
	}
}

func TestIndexKeys(t *testing.T) {
	if keys := IndexKeys(document.Missing()); len(keys) != 0 {
		t.Errorf("missing produced keys %v", keys)
	}
	if keys := IndexKeys(document.MustParse(`[1, 2]`)); len(keys) != 3 {
		t.Errorf("array produced %d keys, want 3", len(keys))
	}
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	c := NewCatalog()
	if _, err := c.Get(ctx, "nope"); !errors.Is(err, errors.ErrCodeUnknownCollection) {
		t.Fatalf("expected UNKNOWN_COLLECTION, got %v", err)
	}
	if err := c.Insert(ctx, "b", document.MustParseDocument(`{"_id": 1}`)); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateIndex(ctx, "a", "x"); err != nil {
		t.Fatal(err)
	}
	coll, err := c.Get(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	got, err := stream.Collect(ctx, Stream(coll))
	if err != nil || len(got) != 1 {
		t.Fatalf("got %v, %v", got, err)
	}
	if names := c.Names(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names = %v", names)
	}
	a, _ := c.Get(ctx, "a")
	if !a.(Indexed).HasIndex("x") {
		t.Error("index not created")
	}
}
