package aggregate

import (
	"context"
	"testing"

	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

func parseDocs(t *testing.T, text string) []*document.Document {
	t.Helper()
	docs, err := document.ParseDocuments([]byte(text))
	if err != nil {
		t.Fatalf("ParseDocuments(%s): %v", text, err)
	}
	return docs
}

func compile(t *testing.T, text string, opts ...Option) *Pipeline {
	t.Helper()
	defs, err := ParseStages([]byte(text))
	if err != nil {
		t.Fatalf("ParseStages: %v", err)
	}
	p, err := Compile(defs, opts...)
	if err != nil {
		t.Fatalf("Compile(%s): %v", text, err)
	}
	return p
}

func runText(t *testing.T, text string, source collection.Collection, resolver collection.Resolver, opts ...Option) []*document.Document {
	t.Helper()
	docs, err := Collect(context.Background(), compile(t, text, opts...), source, resolver)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return docs
}

// runErr returns the compile or run error of a pipeline.
func runErr(t *testing.T, text string, source collection.Collection, resolver collection.Resolver) error {
	t.Helper()
	defs, err := ParseStages([]byte(text))
	if err != nil {
		t.Fatalf("ParseStages: %v", err)
	}
	p, err := Compile(defs)
	if err != nil {
		return err
	}
	docs, err := Collect(context.Background(), p, source, resolver)
	if err == nil {
		t.Fatalf("expected an error, got %v", docs)
	}
	if docs != nil {
		t.Errorf("expected no partial output, got %v", docs)
	}
	return err
}

func assertDocs(t *testing.T, got []*document.Document, want string) {
	t.Helper()
	expected := parseDocsNoT(want)
	if len(got) != len(expected) {
		t.Fatalf("got %d documents %v, want %d %v", len(got), got, len(expected), expected)
	}
	for i := range got {
		if !document.EqualDocuments(got[i], expected[i]) {
			t.Errorf("document %d = %s, want %s", i, got[i], expected[i])
		}
	}
}

func parseDocsNoT(text string) []*document.Document {
	docs, err := document.ParseDocuments([]byte(text))
	if err != nil {
		panic(err)
	}
	return docs
}

func assertCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	if !errors.Is(err, code) {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

func source(t *testing.T, text string) *collection.Memory {
	t.Helper()
	return collection.NewMemory("src", parseDocs(t, text)...)
}
