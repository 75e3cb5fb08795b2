// Package storetest checks that a store.Backend behaves like the in-memory
// collections the engine is specified against.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kbukum/viewkit/aggregate"
	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/store"
	"github.com/kbukum/viewkit/stream"
)

// Opener returns a fresh, empty backend. Backends should use a small page
// size so that scans cross page boundaries.
type Opener func(t *testing.T) store.Backend

// Run exercises every Backend behaviour the engine relies on.
func Run(t *testing.T, open Opener) {
	t.Run("InsertAndScan", func(t *testing.T) { testInsertAndScan(t, open(t)) })
	t.Run("ScanIsSnapshot", func(t *testing.T) { testScanIsSnapshot(t, open(t)) })
	t.Run("ScanPages", func(t *testing.T) { testScanPages(t, open(t)) })
	t.Run("FindEqual", func(t *testing.T) { testFindEqual(t, open(t)) })
	t.Run("Names", func(t *testing.T) { testNames(t, open(t)) })
	t.Run("Health", func(t *testing.T) { testHealth(t, open(t)) })
	t.Run("Lookup", func(t *testing.T) { testLookup(t, open(t)) })
	t.Run("LookupArrays", func(t *testing.T) { testLookupArrays(t, open(t)) })
}

func docs(t *testing.T, text string) []*document.Document {
	t.Helper()
	ds, err := document.ParseDocuments([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func writable(t *testing.T, b store.Backend, name string) collection.Writable {
	t.Helper()
	c, err := b.Collection(name)
	if err != nil {
		t.Fatal(err)
	}
	w, ok := c.(collection.Writable)
	if !ok {
		t.Fatalf("collection %s is not writable", name)
	}
	return w
}

func scanAll(t *testing.T, c collection.Collection) []*document.Document {
	t.Helper()
	ctx := context.Background()
	it, err := c.Scan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	out, err := stream.CollectIter(ctx, it)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func assertDocs(t *testing.T, got []*document.Document, want string) {
	t.Helper()
	expected := docs(t, want)
	if len(got) != len(expected) {
		t.Fatalf("got %v, want %v", got, expected)
	}
	for i := range got {
		if !document.EqualDocuments(got[i], expected[i]) {
			t.Errorf("document %d = %s, want %s", i, got[i], expected[i])
		}
	}
}

func testInsertAndScan(t *testing.T, b store.Backend) {
	ctx := context.Background()
	c := writable(t, b, "items")
	if got := scanAll(t, c); len(got) != 0 {
		t.Fatalf("new collection has %d documents", len(got))
	}
	if err := c.Insert(ctx, docs(t, `[{"_id": 1, "name": "a", "nested": {"z": 1, "a": [1, "x", null]}}, {"_id": 2, "flag": true}]`)...); err != nil {
		t.Fatal(err)
	}
	if err := c.Insert(ctx, docs(t, `[{"_id": 3, "price": 2.5}]`)...); err != nil {
		t.Fatal(err)
	}
	if err := c.Insert(ctx); err != nil {
		t.Fatalf("empty insert: %v", err)
	}
	assertDocs(t, scanAll(t, c), `[
		{"_id": 1, "name": "a", "nested": {"z": 1, "a": [1, "x", null]}},
		{"_id": 2, "flag": true},
		{"_id": 3, "price": 2.5}
	]`)
	got := scanAll(t, c)
	if keys := got[0].Lookup("nested").DocumentValue().Keys(); keys[0] != "z" {
		t.Errorf("field order not preserved: %v", keys)
	}
}

func testScanIsSnapshot(t *testing.T, b store.Backend) {
	ctx := context.Background()
	c := writable(t, b, "snap")
	if err := c.Insert(ctx, docs(t, `[{"_id": 1}, {"_id": 2}]`)...); err != nil {
		t.Fatal(err)
	}
	it, err := c.Scan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Insert(ctx, docs(t, `[{"_id": 3}]`)...); err != nil {
		t.Fatal(err)
	}
	got, err := stream.CollectIter(ctx, it)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("scan saw %d documents, want the 2 present when it started", len(got))
	}
	if n := len(scanAll(t, c)); n != 3 {
		t.Errorf("later scan saw %d documents, want 3", n)
	}
}

func testScanPages(t *testing.T, b store.Backend) {
	ctx := context.Background()
	c := writable(t, b, "many")
	batch := make([]*document.Document, 0, 100)
	for i := 0; i < 250; i++ {
		batch = append(batch, document.Doc(document.F("_id", i), document.F("mod", i%7)))
		if len(batch) == cap(batch) {
			if err := c.Insert(ctx, batch...); err != nil {
				t.Fatal(err)
			}
			batch = batch[:0]
		}
	}
	if err := c.Insert(ctx, batch...); err != nil {
		t.Fatal(err)
	}
	got := scanAll(t, c)
	if len(got) != 250 {
		t.Fatalf("scanned %d documents, want 250", len(got))
	}
	for i, d := range got {
		if id, _ := d.Get("_id").IntValue(); id != int64(i) {
			t.Fatalf("document %d has _id %d", i, id)
		}
	}
}

func testFindEqual(t *testing.T, b store.Backend) {
	ctx := context.Background()
	early := writable(t, b, "early")
	late := writable(t, b, "late")
	plain := writable(t, b, "plain")
	if err := early.CreateIndex(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := early.CreateIndex(ctx, "k"); err != nil {
		t.Fatalf("recreating index: %v", err)
	}
	const data = `[
		{"_id": 1, "k": 1},
		{"_id": 2, "k": [1, 2]},
		{"_id": 3, "k": "1"},
		{"_id": 4, "k": null},
		{"_id": 5},
		{"_id": 6, "k": [[1, 2]]},
		{"_id": 7, "k": 1.0}
	]`
	for _, c := range []collection.Writable{early, late, plain} {
		if err := c.Insert(ctx, docs(t, data)...); err != nil {
			t.Fatal(err)
		}
	}
	if err := late.CreateIndex(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		keys []string
		want []int64
	}{
		{[]string{`1`}, []int64{1, 2, 7}},
		{[]string{`2`}, []int64{2}},
		{[]string{`"1"`}, []int64{3}},
		{[]string{`null`}, []int64{4}},
		{[]string{`[1, 2]`}, []int64{2, 6}},
		{[]string{`3`}, nil},
		// keys of the array [1, 2]: each document once, in insertion order
		{[]string{`1`, `2`, `[1, 2]`}, []int64{1, 2, 6, 7}},
		{[]string{`"1"`, `1`}, []int64{1, 2, 3, 7}},
		{[]string{`3`, `4`}, nil},
	}
	for _, c := range []collection.Writable{early, late, plain} {
		idx, ok := c.(collection.Indexed)
		if !ok {
			t.Fatalf("collection %s is not indexed", c.Name())
		}
		if want := c.Name() != "plain"; idx.HasIndex("k") != want {
			t.Errorf("%s.HasIndex(k) = %v, want %v", c.Name(), !want, want)
		}
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/%s", c.Name(), strings.Join(tt.keys, ",")), func(t *testing.T) {
				keys := make([]document.Value, len(tt.keys))
				for i, k := range tt.keys {
					keys[i] = document.MustParse(k)
				}
				got, err := idx.FindEqual(ctx, "k", keys...)
				if err != nil {
					t.Fatal(err)
				}
				var ids []int64
				for _, d := range got {
					id, _ := d.Get("_id").IntValue()
					ids = append(ids, id)
				}
				if fmt.Sprint(ids) != fmt.Sprint(tt.want) {
					t.Errorf("FindEqual(%v) = %v, want %v", tt.keys, ids, tt.want)
				}
			})
		}
	}
}

func testNames(t *testing.T, b store.Backend) {
	ctx := context.Background()
	if err := writable(t, b, "b").Insert(ctx, document.Doc(document.F("_id", 1))); err != nil {
		t.Fatal(err)
	}
	if err := writable(t, b, "a").CreateIndex(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	names, err := b.Names(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(names) != "[a b]" {
		t.Errorf("Names() = %v, want [a b]", names)
	}
}

func testHealth(t *testing.T, b store.Backend) {
	h := b.CheckHealth(context.Background())
	if h.Status != observability.HealthStatusUp {
		t.Errorf("health = %+v, want up", h)
	}
	report := observability.NewHealthReport("viewkit", "test").Check(context.Background(), b)
	if report.Status != observability.HealthStatusUp || len(report.Components) != 1 {
		t.Errorf("report = %+v", report)
	}
}

func testLookup(t *testing.T, b store.Backend) {
	ctx := context.Background()
	cat := collection.NewCatalog(collection.WithFactory(b.Collection))
	if err := cat.Insert(ctx, "orders", docs(t, `[{"_id": 1, "sku": "a"}, {"_id": 2, "sku": "b"}, {"_id": 3}]`)...); err != nil {
		t.Fatal(err)
	}
	if err := cat.Insert(ctx, "items", docs(t, `[{"sku": "a", "n": 1}, {"sku": "a", "n": 2}, {"sku": null, "n": 3}]`)...); err != nil {
		t.Fatal(err)
	}
	if err := cat.CreateIndex(ctx, "items", "sku"); err != nil {
		t.Fatal(err)
	}
	p, err := aggregate.Compile(docsValues(t, `[
		{"$lookup": {"from": "items", "localField": "sku", "foreignField": "sku", "as": "m"}},
		{"$project": {"n": "$m.n"}}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	orders, err := cat.Get(ctx, "orders")
	if err != nil {
		t.Fatal(err)
	}
	got, err := aggregate.Collect(ctx, p, orders, cat)
	if err != nil {
		t.Fatal(err)
	}
	assertDocs(t, got, `[{"_id": 1, "n": [1, 2]}, {"_id": 2, "n": []}, {"_id": 3, "n": []}]`)
}

// An array local value against an indexed array field must join each
// foreign document once and in foreign collection order, exactly like the
// unindexed hash join.
func testLookupArrays(t *testing.T, b store.Backend) {
	ctx := context.Background()
	cat := collection.NewCatalog(collection.WithFactory(b.Collection))
	if err := cat.Insert(ctx, "left", docs(t, `[
		{"_id": 1, "l": ["x"]},
		{"_id": 2, "l": ["b", "a"]},
		{"_id": 3, "l": []},
		{"_id": 4}
	]`)...); err != nil {
		t.Fatal(err)
	}
	const foreign = `[
		{"_id": "f1", "k": "a"},
		{"_id": "f2", "k": ["b", "c"]},
		{"_id": "f3", "k": ["x"]},
		{"_id": "f4", "k": ["a", "b"]}
	]`
	if err := cat.Insert(ctx, "indexed", docs(t, foreign)...); err != nil {
		t.Fatal(err)
	}
	if err := cat.Insert(ctx, "plain", docs(t, foreign)...); err != nil {
		t.Fatal(err)
	}
	if err := cat.CreateIndex(ctx, "indexed", "k"); err != nil {
		t.Fatal(err)
	}
	left, err := cat.Get(ctx, "left")
	if err != nil {
		t.Fatal(err)
	}
	const want = `[
		{"_id": 1, "j": ["f3"]},
		{"_id": 2, "j": ["f1", "f2", "f4"]},
		{"_id": 3, "j": []},
		{"_id": 4, "j": []}
	]`
	for _, from := range []string{"indexed", "plain"} {
		t.Run(from, func(t *testing.T) {
			p, err := aggregate.Compile(docsValues(t, `[
				{"$lookup": {"from": "`+from+`", "localField": "l", "foreignField": "k", "as": "j"}},
				{"$project": {"j": "$j._id"}}
			]`))
			if err != nil {
				t.Fatal(err)
			}
			got, err := aggregate.Collect(ctx, p, left, cat)
			if err != nil {
				t.Fatal(err)
			}
			assertDocs(t, got, want)
		})
	}
}

func docsValues(t *testing.T, text string) []document.Value {
	t.Helper()
	stages, err := aggregate.ParseStages([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	return stages
}
