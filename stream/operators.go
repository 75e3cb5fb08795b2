package stream

import "context"

// Map transforms each value using fn.
func Map[I, O any](s *Stream[I], fn func(context.Context, I) (O, error)) *Stream[O] {
	return &Stream[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &mapIter[I, O]{source: s.create(ctx), fn: fn}
		},
	}
}

// FlatMap transforms each value into an iterator and flattens the results.
func FlatMap[I, O any](s *Stream[I], fn func(context.Context, I) (Iterator[O], error)) *Stream[O] {
	return &Stream[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &flatMapIter[I, O]{source: s.create(ctx), fn: fn}
		},
	}
}

// Filter keeps only values for which fn returns true. An error from fn ends
// the stream.
func Filter[T any](s *Stream[T], fn func(context.Context, T) (bool, error)) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &filterIter[T]{source: s.create(ctx), fn: fn}
		},
	}
}

// Skip drops the first n values.
func Skip[T any](s *Stream[T], n int64) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &skipIter[T]{source: s.create(ctx), remaining: n}
		},
	}
}

// Limit yields at most n values and stops pulling from its source afterwards.
func Limit[T any](s *Stream[T], n int64) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &limitIter[T]{source: s.create(ctx), remaining: n}
		},
	}
}

// Batch groups consecutive values into slices of up to size elements.
func Batch[T any](s *Stream[T], size int) *Stream[[]T] {
	if size <= 0 {
		size = 1
	}
	return &Stream[[]T]{
		create: func(ctx context.Context) Iterator[[]T] {
			return &batchIter[T]{source: s.create(ctx), size: size}
		},
	}
}

// Deferred materializes its output by calling fn with the source iterator on
// the first pull. It is the building block for blocking operators such as
// sorting and grouping, which must consume their whole input first.
func Deferred[I, O any](s *Stream[I], fn func(context.Context, Iterator[I]) ([]O, error)) *Stream[O] {
	return &Stream[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &deferredIter[I, O]{source: s.create(ctx), fn: fn}
		},
	}
}

// Guard checks the context before every pull from s, so that a cancelled
// run stops reading its source even when the source itself never blocks.
func Guard[T any](s *Stream[T]) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &guardIter[T]{source: s.create(ctx)}
		},
	}
}

// MapErr rewrites every error that surfaces from s.
func MapErr[T any](s *Stream[T], fn func(error) error) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &mapErrIter[T]{source: s.create(ctx), fn: fn}
		},
	}
}

// --- Iterator implementations ---

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		var zero O
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		var zero O
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type flatMapIter[I, O any] struct {
	source  Iterator[I]
	fn      func(context.Context, I) (Iterator[O], error)
	current Iterator[O]
}

func (it *flatMapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	for {
		if it.current != nil {
			val, ok, err := it.current.Next(ctx)
			if err != nil {
				var zero O
				return zero, false, err
			}
			if ok {
				return val, true, nil
			}
			_ = it.current.Close()
			it.current = nil
		}
		in, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			var zero O
			return zero, false, err
		}
		inner, err := it.fn(ctx, in)
		if err != nil {
			var zero O
			return zero, false, err
		}
		it.current = inner
	}
}

func (it *flatMapIter[I, O]) Close() error {
	if it.current != nil {
		_ = it.current.Close()
	}
	return it.source.Close()
}

type filterIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) (bool, error)
}

func (it *filterIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		keep, err := it.fn(ctx, val)
		if err != nil {
			var zero T
			return zero, false, err
		}
		if keep {
			return val, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

type skipIter[T any] struct {
	source    Iterator[T]
	remaining int64
}

func (it *skipIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for it.remaining > 0 {
		if _, ok, err := it.source.Next(ctx); err != nil || !ok {
			var zero T
			return zero, false, err
		}
		it.remaining--
	}
	return it.source.Next(ctx)
}

func (it *skipIter[T]) Close() error { return it.source.Close() }

type limitIter[T any] struct {
	source    Iterator[T]
	remaining int64
}

func (it *limitIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	if it.remaining <= 0 {
		var zero T
		return zero, false, nil
	}
	val, ok, err := it.source.Next(ctx)
	if ok {
		it.remaining--
	}
	return val, ok, err
}

func (it *limitIter[T]) Close() error { return it.source.Close() }

type batchIter[T any] struct {
	source Iterator[T]
	size   int
	done   bool
}

func (it *batchIter[T]) Next(ctx context.Context) (result []T, ok bool, err error) {
	if it.done {
		return nil, false, nil
	}
	var batch []T
	for len(batch) < it.size {
		val, ok, err := it.source.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			it.done = true
			break
		}
		batch = append(batch, val)
	}
	if len(batch) == 0 {
		return nil, false, nil
	}
	return batch, true, nil
}

func (it *batchIter[T]) Close() error { return it.source.Close() }

type deferredIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, Iterator[I]) ([]O, error)
	out    []O
	index  int
	loaded bool
}

func (it *deferredIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	if !it.loaded {
		it.loaded = true
		out, err := it.fn(ctx, it.source)
		if err != nil {
			var zero O
			return zero, false, err
		}
		it.out = out
	}
	if it.index >= len(it.out) {
		var zero O
		return zero, false, nil
	}
	val := it.out[it.index]
	it.index++
	return val, true, nil
}

func (it *deferredIter[I, O]) Close() error { return it.source.Close() }

type guardIter[T any] struct {
	source Iterator[T]
}

func (it *guardIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, false, err
	}
	return it.source.Next(ctx)
}

func (it *guardIter[T]) Close() error { return it.source.Close() }

type mapErrIter[T any] struct {
	source Iterator[T]
	fn     func(error) error
}

func (it *mapErrIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil {
		return val, false, it.fn(err)
	}
	return val, ok, nil
}

func (it *mapErrIter[T]) Close() error { return it.source.Close() }
