package store

import (
	"context"
	"slices"

	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
)

// Encode serializes a document for storage, preserving field order.
func Encode(d *document.Document) ([]byte, error) {
	return d.MarshalJSON()
}

// Decode restores a document written by Encode.
func Decode(data []byte) (*document.Document, error) {
	return document.ParseDocument(data)
}

// KeyHashes returns the hashes of every equality key the document's field is
// indexed under, without duplicates.
func KeyHashes(d *document.Document, field string) []uint64 {
	return Hashes(collection.IndexKeys(d.Lookup(field))...)
}

// Hashes returns the distinct hashes of keys.
func Hashes(keys ...document.Value) []uint64 {
	out := make([]uint64, 0, len(keys))
	for _, k := range keys {
		if h := document.Hash(k); !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	return out
}

// MatchEqual keeps the candidates whose field matches any of keys under the
// rules of collection.IndexKeys. Hash buckets may collide, so backends that
// look up by KeyHashes filter through it.
func MatchEqual(candidates []*document.Document, field string, keys ...document.Value) []*document.Document {
	out := candidates[:0:0]
	for _, d := range candidates {
		if collection.Matches(d.Lookup(field), keys...) {
			out = append(out, d)
		}
	}
	return out
}

// ScanEqual is the unindexed fallback for FindEqual: a full scan filtered by
// MatchEqual.
func ScanEqual(ctx context.Context, c collection.Collection, field string, keys ...document.Value) ([]*document.Document, error) {
	it, err := c.Scan(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []*document.Document
	for {
		d, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		if collection.Matches(d.Lookup(field), keys...) {
			out = append(out, d)
		}
	}
}
