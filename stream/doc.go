// Package stream provides lazy, pull-based iterators over document streams.
//
// A Stream does no work until it is pulled via Collect, ForEach, Drain or
// an iterator from Lazy. Each operator pulls from its source on demand, so
// a stage only reads as many documents as its consumer asks for and a
// cancelled context stops further reads at the next pull.
//
// # Operators
//
// Synchronous (single-goroutine):
//
//   - Map: transform each value
//   - FlatMap: transform each value into zero or more values
//   - Filter: keep values matching a predicate
//   - Skip, Limit: positional slicing
//   - Batch: group consecutive values into fixed-size slices
//   - Deferred: materialize a whole result on first pull
//   - Guard, MapErr: cancellation checks and error rewriting at stage boundaries
//
// Concurrent:
//
//   - OrderedMap: concurrent Map on a bounded worker pool, order preserved
//
// # Usage
//
//	src := stream.FromSlice(docs)
//	out := stream.Filter(src, func(_ context.Context, d *document.Document) (bool, error) {
//	    return d.Has("active"), nil
//	})
//	docs, err := stream.Collect(ctx, out)
package stream
