package binance

import (
	"context"
	"time"
)

// RetryPolicy controls resubmission of a failed request. The request is
// rebuilt from scratch on every attempt so each carries a fresh timestamp
// and signature.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Retryable   func(error) bool
}

// singleAttempt is the default for every call that is not a market sell.
var singleAttempt = RetryPolicy{MaxAttempts: 1}

func sellRetryPolicy(attempts int, backoff time.Duration) RetryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	return RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     backoff,
		Retryable:   IsTimeout,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) shouldRetry(attempt int, err error) bool {
	if err == nil || attempt >= p.attempts() {
		return false
	}
	return p.Retryable != nil && p.Retryable(err)
}

// sleep waits out the backoff, or returns early when ctx is done.
func (p RetryPolicy) sleep(ctx context.Context) error {
	if p.Backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
