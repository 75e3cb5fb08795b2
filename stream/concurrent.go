package stream

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// OrderedMap applies fn to values concurrently on a pool of n workers and
// yields the results in source order. At most n values are in flight.
// With n <= 1 it is equivalent to Map.
func OrderedMap[I, O any](s *Stream[I], n int, fn func(context.Context, I) (O, error)) *Stream[O] {
	if n <= 1 {
		return Map(s, fn)
	}
	return &Stream[O]{
		create: func(ctx context.Context) Iterator[O] {
			pool, err := ants.NewPool(n, ants.WithPanicHandler(func(p any) {}))
			if err != nil {
				return Fail[O](fmt.Errorf("stream: worker pool: %w", err))
			}
			source := s.create(ctx)
			workCtx, cancel := context.WithCancel(ctx)
			// futures preserves source order: each entry is the slot the
			// corresponding worker writes its single result into.
			futures := make(chan chan result[O], n)
			done := make(chan struct{})

			go func() {
				defer close(done)
				defer close(futures)
				for {
					val, ok, err := source.Next(workCtx)
					if err != nil {
						slot := make(chan result[O], 1)
						slot <- result[O]{err: err}
						select {
						case futures <- slot:
						case <-workCtx.Done():
						}
						return
					}
					if !ok {
						return
					}
					slot := make(chan result[O], 1)
					select {
					case futures <- slot:
					case <-workCtx.Done():
						return
					}
					task := func() {
						defer func() {
							if p := recover(); p != nil {
								slot <- result[O]{err: fmt.Errorf("stream: worker panic: %v", p)}
							}
						}()
						o, err := fn(workCtx, val)
						if err != nil {
							slot <- result[O]{err: err}
							return
						}
						slot <- result[O]{val: o, ok: true}
					}
					if err := pool.Submit(task); err != nil {
						slot <- result[O]{err: fmt.Errorf("stream: submit: %w", err)}
						return
					}
				}
			}()

			return &orderedIter[O]{
				futures: futures,
				closer: func() error {
					cancel()
					for range futures {
					}
					<-done
					pool.Release()
					return source.Close()
				},
			}
		},
	}
}

type orderedIter[O any] struct {
	futures <-chan chan result[O]
	closer  func() error
	failed  bool
}

func (it *orderedIter[O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	if it.failed {
		return zero, false, nil
	}
	var slot chan result[O]
	select {
	case s, open := <-it.futures:
		if !open {
			return zero, false, nil
		}
		slot = s
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
	select {
	case r := <-slot:
		if r.err != nil {
			it.failed = true
			return zero, false, r.err
		}
		return r.val, true, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (it *orderedIter[O]) Close() error { return it.closer() }
