package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Policy describes how an operation is retried. Zero fields take the
// defaults of DefaultPolicy.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Initial is the delay before the second try.
	Initial time.Duration
	// Max caps the delay between tries.
	Max time.Duration
	// Factor multiplies the delay after every try.
	Factor float64
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
	// RetryIf reports whether err is transient. The default retries
	// everything except context cancellation.
	RetryIf func(err error) bool
	// OnRetry is called before sleeping ahead of try attempt+1.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns three tries with exponential backoff from 10ms.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Initial:  10 * time.Millisecond,
		Max:      time.Second,
		Factor:   2,
		Jitter:   0.1,
		RetryIf:  Transient,
	}
}

// Transient treats every error except cancellation as retryable.
func Transient(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Initial <= 0 {
		p.Initial = d.Initial
	}
	if p.Max <= 0 {
		p.Max = d.Max
	}
	if p.Factor < 1 {
		p.Factor = d.Factor
	}
	if p.RetryIf == nil {
		p.RetryIf = d.RetryIf
	}
	return p
}

// Delay returns the pause after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	d := float64(p.Initial) * math.Pow(p.Factor, float64(attempt-1))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	if d > float64(p.Max) {
		d = float64(p.Max)
	}
	if d < 0 {
		d = float64(p.Initial)
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, returns a non-transient error, or the
// attempts run out. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.withDefaults()
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(ctx); err == nil || !p.RetryIf(err) {
			return err
		}
		if attempt == p.Attempts {
			break
		}
		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
