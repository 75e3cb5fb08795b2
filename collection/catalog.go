package collection

import (
	"context"
	"sort"
	"sync"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

// Catalog is a Resolver over a set of named raw collections.
type Catalog struct {
	mu          sync.RWMutex
	collections map[string]Collection
	factory     func(name string) (Collection, error)
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithFactory sets the constructor used by Ensure for unknown names.
// The default creates Memory collections.
func WithFactory(fn func(name string) (Collection, error)) CatalogOption {
	return func(c *Catalog) { c.factory = fn }
}

// NewCatalog returns an empty catalog.
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{
		collections: make(map[string]Collection),
		factory: func(name string) (Collection, error) {
			return NewMemory(name), nil
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds or replaces a collection under its own name.
func (c *Catalog) Register(coll Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections[coll.Name()] = coll
}

// Get returns the named collection or an UNKNOWN_COLLECTION error.
func (c *Catalog) Get(_ context.Context, name string) (Collection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coll, ok := c.collections[name]
	if !ok {
		return nil, errors.UnknownCollection(name)
	}
	return coll, nil
}

// Ensure returns the named collection, creating it with the factory when absent.
func (c *Catalog) Ensure(name string) (Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if coll, ok := c.collections[name]; ok {
		return coll, nil
	}
	coll, err := c.factory(name)
	if err != nil {
		return nil, errors.Storage(name, err)
	}
	c.collections[name] = coll
	return coll, nil
}

// Insert appends documents to the named collection, creating it if needed.
func (c *Catalog) Insert(ctx context.Context, name string, docs ...*document.Document) error {
	coll, err := c.Ensure(name)
	if err != nil {
		return err
	}
	w, ok := coll.(Writable)
	if !ok {
		return errors.Newf(errors.ErrCodeStorage, "collection %q is read-only", name).
			WithDetail(errors.DetailCollection, name)
	}
	return w.Insert(ctx, docs...)
}

// CreateIndex declares an equality index on the named collection.
func (c *Catalog) CreateIndex(ctx context.Context, name, field string) error {
	coll, err := c.Ensure(name)
	if err != nil {
		return err
	}
	w, ok := coll.(Writable)
	if !ok {
		return errors.Newf(errors.ErrCodeStorage, "collection %q does not support indexes", name).
			WithDetail(errors.DetailCollection, name)
	}
	return w.CreateIndex(ctx, field)
}

// Names returns the registered collection names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.collections))
	for n := range c.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
