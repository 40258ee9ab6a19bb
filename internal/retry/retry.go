// Package retry is the single bounded-retry policy shared by session opening
// and job fetching.
package retry

import (
	"context"
	"math"
	"time"
)

type Policy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Retryable decides whether an error deserves another attempt. Nil
	// retries nothing.
	Retryable func(error) bool
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Backoff returns the wait after the given failed attempt (1-based):
// BaseDelay doubled per attempt, capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	factor := math.Pow(2, float64(attempt-1))
	d := time.Duration(factor * float64(p.BaseDelay))
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		return p.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, fails with a non-retryable error, or has
// used MaxRetries+1 attempts. It returns the attempts made and the last
// error. Context cancellation ends the loop immediately.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, error) {
	attempts := 0
	for {
		attempts++
		err := op(ctx, attempts)
		if err == nil {
			return attempts, nil
		}
		if ctx.Err() != nil {
			return attempts, err
		}
		if attempts > p.MaxRetries || p.Retryable == nil || !p.Retryable(err) {
			return attempts, err
		}

		delay := p.Backoff(attempts)
		if p.OnRetry != nil {
			p.OnRetry(attempts, delay, err)
		}
		if werr := p.sleep(ctx, delay); werr != nil {
			return attempts, err
		}
	}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
