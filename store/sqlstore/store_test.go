package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/store"
	"github.com/kbukum/viewkit/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "viewkit.db"), 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend { return openTemp(t) })
}

func TestStore_RegisteredDriver(t *testing.T) {
	b, err := store.Open(store.Config{Driver: store.DriverSQLite, DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, ok := b.(*Store); !ok {
		t.Fatalf("Open returned %T", b)
	}
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "viewkit.db")
	s, err := Open(path, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := s.Collection("t")
	if err := c.(*Collection).Insert(ctx, document.MustParseDocument(`{"_id": 1, "k": "x"}`)); err != nil {
		t.Fatal(err)
	}
	if err := c.(*Collection).CreateIndex(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	c, _ = s.Collection("t")
	coll := c.(*Collection)
	if !coll.HasIndex("k") {
		t.Error("index lost on reopen")
	}
	got, err := coll.FindEqual(ctx, "k", document.String("x"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("FindEqual after reopen = %v", got)
	}
}
