package store

import (
	"context"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/stream"
)

// PageFunc loads, in sequence order, up to limit documents whose sequence
// number is in (after, upto]. It returns the last sequence number loaded.
type PageFunc func(ctx context.Context, after, upto int64, limit int) (docs []*document.Document, last int64, err error)

// Paged returns an iterator that loads documents one page at a time. Only
// documents with sequence numbers up to upto are visible, so a scan
// observes the collection as it was when the scan started.
func Paged(fetch PageFunc, upto int64, pageSize int) stream.Iterator[*document.Document] {
	return &pagedIter{fetch: fetch, upto: upto, size: pageSize}
}

type pagedIter struct {
	fetch PageFunc
	after int64
	upto  int64
	size  int
	buf   []*document.Document
	done  bool
}

func (it *pagedIter) Next(ctx context.Context) (*document.Document, bool, error) {
	for len(it.buf) == 0 {
		if it.done || it.after >= it.upto {
			return nil, false, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		docs, last, err := it.fetch(ctx, it.after, it.upto, it.size)
		if err != nil {
			return nil, false, err
		}
		if len(docs) < it.size {
			it.done = true
		}
		it.buf = docs
		it.after = last
	}
	d := it.buf[0]
	it.buf = it.buf[1:]
	return d, true, nil
}

func (it *pagedIter) Close() error {
	it.buf = nil
	it.done = true
	return nil
}
