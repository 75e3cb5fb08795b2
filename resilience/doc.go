// Package resilience retries storage operations that fail transiently,
// such as optimistic transactions that lose a race with a concurrent
// writer.
//
//	err := resilience.Do(ctx, resilience.Policy{
//	    Attempts: 8,
//	    RetryIf:  func(err error) bool { return errors.Is(err, redis.TxFailedErr) },
//	}, func(ctx context.Context) error {
//	    return rdb.Watch(ctx, txf, key)
//	})
package resilience
