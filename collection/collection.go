package collection

import (
	"context"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/stream"
)

// Collection is a named, externally owned sequence of documents.
type Collection interface {
	Name() string
	// Scan returns an iterator over every document in collection order.
	// Returned documents must not be modified by the caller.
	Scan(ctx context.Context) (stream.Iterator[*document.Document], error)
}

// Indexed is a collection that can answer equality lookups on some fields.
type Indexed interface {
	Collection
	HasIndex(field string) bool
	// FindEqual returns, in collection order and at most once each, the
	// documents whose field matches any of keys under the rules of IndexKeys.
	FindEqual(ctx context.Context, field string, keys ...document.Value) ([]*document.Document, error)
}

// Writable is a collection that accepts new documents and index declarations.
type Writable interface {
	Collection
	Insert(ctx context.Context, docs ...*document.Document) error
	CreateIndex(ctx context.Context, field string) error
}

// Resolver maps collection names to readable collections.
type Resolver interface {
	Get(ctx context.Context, name string) (Collection, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, name string) (Collection, error)

func (f ResolverFunc) Get(ctx context.Context, name string) (Collection, error) {
	return f(ctx, name)
}

// Stream wraps a collection scan as a lazy stream. Each iteration rescans.
func Stream(c Collection) *stream.Stream[*document.Document] {
	return stream.FromOpen(c.Scan)
}

// IndexKeys returns the equality keys under which a field value is indexed.
// Missing has no keys. An array is indexed under each of its elements and
// under the whole array, so that a scalar key matches any element and an
// array key matches an identical array.
func IndexKeys(v document.Value) []document.Value {
	switch {
	case v.IsMissing():
		return nil
	case v.IsArray():
		elems := v.ArrayValue()
		keys := make([]document.Value, 0, len(elems)+1)
		keys = append(keys, elems...)
		return append(keys, v)
	default:
		return []document.Value{v}
	}
}

// Matches reports whether a field value is indexed under any of keys.
func Matches(v document.Value, keys ...document.Value) bool {
	for _, k := range IndexKeys(v) {
		for _, key := range keys {
			if document.Equal(k, key) {
				return true
			}
		}
	}
	return false
}
