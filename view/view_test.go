package view

import (
	"context"
	"testing"

	"github.com/kbukum/viewkit/aggregate"
	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

func stages(t *testing.T, text string) []document.Value {
	t.Helper()
	defs, err := aggregate.ParseStages([]byte(text))
	if err != nil {
		t.Fatalf("ParseStages: %v", err)
	}
	return defs
}

func docs(t *testing.T, text string) []*document.Document {
	t.Helper()
	ds, err := document.ParseDocuments([]byte(text))
	if err != nil {
		t.Fatalf("ParseDocuments: %v", err)
	}
	return ds
}

func define(t *testing.T, r *Registry, name, source, pipeline string) {
	t.Helper()
	if _, err := r.DefineView(name, source, stages(t, pipeline)); err != nil {
		t.Fatalf("DefineView(%s): %v", name, err)
	}
}

func assertDocs(t *testing.T, got []*document.Document, want string) {
	t.Helper()
	expected, err := document.ParseDocuments([]byte(want))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(expected) {
		t.Fatalf("got %v, want %v", got, expected)
	}
	for i := range got {
		if !document.EqualDocuments(got[i], expected[i]) {
			t.Errorf("document %d = %s, want %s", i, got[i], expected[i])
		}
	}
}

func newCompanyCatalog(t *testing.T) *collection.Catalog {
	t.Helper()
	cat := collection.NewCatalog()
	cat.Register(collection.NewMemory("companies", docs(t, `[
		{"id": 3, "company_name": "Co"},
		{"id": 4, "company_name": "Other"}
	]`)...))
	cat.Register(collection.NewMemory("carriers", docs(t, `[
		{"carrier_id": 9, "company_id": 4, "carrier_name": "C"},
		{"carrier_id": 8, "company_id": 4, "carrier_name": "D"}
	]`)...))
	return cat
}

func TestNestedView_PreservedEmptyJoin(t *testing.T) {
	r := NewRegistry(newCompanyCatalog(t))
	define(t, r, "carrier_names", "carriers", `[{"$project": {"_id": "$carrier_id", "company_id": 1, "name": "$carrier_name"}}]`)
	define(t, r, "company_carriers", "companies", `[
		{"$lookup": {"from": "carrier_names", "localField": "id", "foreignField": "company_id", "as": "carriers"}},
		{"$unwind": {"path": "$carriers", "preserveNullAndEmptyArrays": true}},
		{"$group": {"_id": "$id", "name": {"$first": "$company_name"}, "carriers": {"$addToSet": "$carriers"}}}
	]`)

	got, err := r.Collect(context.Background(), "company_carriers")
	if err != nil {
		t.Fatal(err)
	}
	assertDocs(t, got, `[
		{"_id": 3, "name": "Co", "carriers": [null]},
		{"_id": 4, "name": "Other", "carriers": [
			{"_id": 9, "company_id": 4, "name": "C"},
			{"_id": 8, "company_id": 4, "name": "D"}
		]}
	]`)
}

func TestViewOnView(t *testing.T) {
	r := NewRegistry(newCompanyCatalog(t))
	define(t, r, "big", "companies", `[{"$match": {"id": {"$gt": 3}}}]`)
	define(t, r, "big_names", "big", `[{"$project": {"_id": 0, "company_name": 1}}]`)

	got, err := r.Collect(context.Background(), "big_names")
	if err != nil {
		t.Fatal(err)
	}
	assertDocs(t, got, `[{"company_name": "Other"}]`)
}

func TestView_RereadsSource(t *testing.T) {
	cat := newCompanyCatalog(t)
	r := NewRegistry(cat)
	define(t, r, "count", "companies", `[{"$count": "n"}]`)

	ctx := context.Background()
	first, err := r.Collect(ctx, "count")
	if err != nil {
		t.Fatal(err)
	}
	assertDocs(t, first, `[{"n": 2}]`)

	if err := cat.Insert(ctx, "companies", document.Doc(document.F("id", 5))); err != nil {
		t.Fatal(err)
	}
	second, err := r.Collect(ctx, "count")
	if err != nil {
		t.Fatal(err)
	}
	assertDocs(t, second, `[{"n": 3}]`)
}

func TestView_Cycles(t *testing.T) {
	tests := []struct {
		name     string
		defs     [][3]string
		read     string
		maxDepth int
	}{
		{
			name: "self source",
			defs: [][3]string{{"a", "a", `[]`}},
			read: "a",
		},
		{
			name: "mutual sources",
			defs: [][3]string{{"a", "b", `[{"$match": {}}]`}, {"b", "a", `[{"$match": {}}]`}},
			read: "a",
		},
		{
			name: "lookup into itself",
			defs: [][3]string{{"a", "companies", `[{"$lookup": {"from": "a", "localField": "id", "foreignField": "id", "as": "x"}}]`}},
			read: "a",
		},
		{
			name: "correlated lookup into a dependent view",
			defs: [][3]string{
				{"a", "companies", `[{"$lookup": {"from": "b", "pipeline": [], "as": "x"}}]`},
				{"b", "a", `[]`},
			},
			read: "a",
		},
		{
			name:     "depth limit",
			defs:     [][3]string{{"v1", "companies", `[]`}, {"v2", "v1", `[]`}, {"v3", "v2", `[]`}},
			read:     "v3",
			maxDepth: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.maxDepth > 0 {
				opts = append(opts, WithMaxDepth(tt.maxDepth))
			}
			r := NewRegistry(newCompanyCatalog(t), opts...)
			for _, d := range tt.defs {
				define(t, r, d[0], d[1], d[2])
			}
			_, err := r.Collect(context.Background(), tt.read)
			if !errors.Is(err, errors.ErrCodeCyclicViewReference) {
				t.Fatalf("error = %v, want CYCLIC_VIEW_REFERENCE", err)
			}
		})
	}
}

func TestView_DiamondIsNotACycle(t *testing.T) {
	r := NewRegistry(newCompanyCatalog(t))
	define(t, r, "base", "companies", `[{"$project": {"_id": "$id"}}]`)
	define(t, r, "joined", "base", `[
		{"$lookup": {"from": "base", "localField": "_id", "foreignField": "_id", "as": "same"}},
		{"$project": {"n": {"$size": "$same"}}}
	]`)
	got, err := r.Collect(context.Background(), "joined")
	if err != nil {
		t.Fatal(err)
	}
	assertDocs(t, got, `[{"_id": 3, "n": 1}, {"_id": 4, "n": 1}]`)
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry(newCompanyCatalog(t))
	ctx := context.Background()

	define(t, r, "v", "missing_source", `[]`)
	_, err := r.Collect(ctx, "v")
	if !errors.Is(err, errors.ErrCodeUnknownCollection) {
		t.Errorf("unknown source: %v", err)
	}

	_, err = r.DefineView("v", "companies", nil)
	if !errors.Is(err, errors.ErrCodeInvalidDefinition) {
		t.Errorf("duplicate view: %v", err)
	}

	_, err = r.DefineView("bad", "companies", stages(t, `[{"$bogus": 1}]`))
	if !errors.Is(err, errors.ErrCodeUnknownStageKind) {
		t.Errorf("invalid pipeline: %v", err)
	}
	if _, ok := r.View("bad"); ok {
		t.Error("invalid view was registered")
	}

	_, err = r.DefineView("", "companies", nil)
	if !errors.Is(err, errors.ErrCodeInvalidDefinition) {
		t.Errorf("empty name: %v", err)
	}

	_, err = r.Get(ctx, "nothing")
	if !errors.Is(err, errors.ErrCodeUnknownCollection) {
		t.Errorf("unknown name: %v", err)
	}
}

func TestRegistry_NamesAndDrop(t *testing.T) {
	r := NewRegistry(nil)
	define(t, r, "b", "x", `[]`)
	define(t, r, "a", "x", `[]`)
	if got := r.Names(); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("Names() = %v", got)
	}
	if !r.DropView("b") || r.DropView("b") {
		t.Error("DropView should succeed once")
	}
	if got := r.Names(); len(got) != 1 || got[0] != "a" {
		t.Errorf("Names() after drop = %v", got)
	}
	v, _ := r.View("a")
	if v.Source() != "x" || v.Pipeline().Name() != "a" {
		t.Errorf("view a = %s over %s", v.Pipeline().Name(), v.Source())
	}
	if _, err := r.Get(context.Background(), "x"); !errors.Is(err, errors.ErrCodeUnknownCollection) {
		t.Errorf("nil base: %v", err)
	}
}
