package delayed

import (
	"context"
	"time"
)

// RetryPolicy controls how a failed persist call is retried.
// Delays grow exponentially from BaseDelay by Factor, capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64

	// Retryable reports whether err is worth another attempt. Nil means every
	// error is retried.
	Retryable func(err error) bool
}

// DefaultRetryPolicy allows 5 attempts: 500ms, 1s, 2s, 4s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Factor:      2,
	}
}

// NoRetry makes a single attempt
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Backoff returns the wait before attempt n+1 after attempt n (1-based) failed
func (p RetryPolicy) Backoff(n int) time.Duration {
	d := p.BaseDelay
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * factor)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) retryable(err error) bool {
	if err == nil {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// do runs fn until it succeeds, the error is not retryable, attempts run out
// or ctx is done. It returns the number of attempts made.
func (p RetryPolicy) do(ctx context.Context, fn func(attempt int) error) (int, error) {
	var err error
	max := p.attempts()
	for attempt := 1; attempt <= max; attempt++ {
		if err = fn(attempt); err == nil {
			return attempt, nil
		}
		if attempt == max || !p.retryable(err) {
			return attempt, err
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return max, err
}
