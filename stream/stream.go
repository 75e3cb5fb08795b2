package stream

import "context"

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Stream is a lazy, re-runnable source of values. Every call to Iter
// starts a fresh iteration.
type Stream[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// Runnable is a fully-configured stream ready to execute.
type Runnable struct {
	run func(ctx context.Context) error
}

// Run executes the stream until completion, error or context cancellation.
func (r *Runnable) Run(ctx context.Context) error {
	return r.run(ctx)
}

// result carries a value or error through a channel.
type result[T any] struct {
	val T
	ok  bool
	err error
}

// --- Constructors ---

// FromSlice creates a stream from a slice of values.
func FromSlice[T any](items []T) *Stream[T] {
	return &Stream[T]{
		create: func(_ context.Context) Iterator[T] {
			return &sliceIter[T]{items: items}
		},
	}
}

// FromFunc creates a stream from a factory that produces an Iterator.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Stream[T] {
	return &Stream[T]{create: fn}
}

// FromOpen creates a stream from a factory that may fail to open. The
// error surfaces on the first pull.
func FromOpen[T any](open func(ctx context.Context) (Iterator[T], error)) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			it, err := open(ctx)
			if err != nil {
				return Fail[T](err)
			}
			return it
		},
	}
}

// Fail returns an iterator whose first pull returns err.
func Fail[T any](err error) Iterator[T] { return &failIter[T]{err: err} }

// Slice returns an iterator over items.
func Slice[T any](items []T) Iterator[T] { return &sliceIter[T]{items: items} }

// --- Terminals ---

// Drain creates a Runnable that pulls all values and sends each to sink.
func Drain[T any](s *Stream[T], sink func(context.Context, T) error) *Runnable {
	return &Runnable{
		run: func(ctx context.Context) error {
			return drainIter(ctx, s.create(ctx), sink)
		},
	}
}

// Collect runs the stream and returns all values as a slice.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	return CollectIter(ctx, s.create(ctx))
}

// CollectIter pulls every value from iter and closes it.
func CollectIter[T any](ctx context.Context, iter Iterator[T]) ([]T, error) {
	var out []T
	err := drainIter(ctx, iter, func(_ context.Context, v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// ForEach pulls all values and calls fn for each. Convenience wrapper around Drain.
func ForEach[T any](ctx context.Context, s *Stream[T], fn func(context.Context, T) error) error {
	return Drain(s, fn).Run(ctx)
}

// Iter returns the raw Iterator for this stream. The caller must Close() it.
func (s *Stream[T]) Iter(ctx context.Context) Iterator[T] {
	return s.create(ctx)
}

// Lazy is like s.Iter(ctx) but starts the iteration on the first pull, so
// sources are not opened and workers not started until a value is wanted.
// Closing an iterator that was never pulled starts nothing.
func Lazy[T any](ctx context.Context, s *Stream[T]) Iterator[T] {
	return &lazyIter[T]{ctx: ctx, stream: s}
}

func drainIter[T any](ctx context.Context, iter Iterator[T], sink func(context.Context, T) error) (err error) {
	defer func() {
		if cerr := iter.Close(); err == nil {
			err = cerr
		}
	}()
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := sink(ctx, val); err != nil {
			return err
		}
	}
}

// --- Internal iterators ---

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type failIter[T any] struct {
	err error
}

func (it *failIter[T]) Next(_ context.Context) (T, bool, error) {
	var zero T
	return zero, false, it.err
}

func (it *failIter[T]) Close() error { return nil }

type lazyIter[T any] struct {
	ctx    context.Context
	stream *Stream[T]
	source Iterator[T]
	closed bool
}

func (it *lazyIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.closed {
		var zero T
		return zero, false, nil
	}
	if it.source == nil {
		it.source = it.stream.create(it.ctx)
	}
	return it.source.Next(ctx)
}

func (it *lazyIter[T]) Close() error {
	it.closed = true
	if it.source == nil {
		return nil
	}
	return it.source.Close()
}
