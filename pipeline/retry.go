package pipeline

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy controls per-item retries and the exponential backoff between
// attempts: initial delay, doubling per attempt, capped, with ±10% jitter.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// DefaultRetryPolicy matches the documented defaults: three attempts,
// 30s initial backoff, 600s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Initial:     30 * time.Second,
		Max:         600 * time.Second,
	}
}

// Delay returns the backoff before the given retry attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			d = p.Max
			break
		}
	}
	if d > p.Max {
		d = p.Max
	}
	return jitter(d)
}

// jitter spreads a delay by ±10% so that workers retrying in lockstep
// do not hammer a recovering dependency simultaneously.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	f := 0.9 + 0.2*rand.Float64()
	return time.Duration(float64(d) * f)
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
