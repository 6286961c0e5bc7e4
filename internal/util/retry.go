package util

import (
	"context"
	"errors"
	"time"
)

// Backoff configures bounded exponential retries.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// DefaultBackoff is used for AI provider and graph calls: 3 attempts,
// starting at one second and capped at ten.
var DefaultBackoff = Backoff{Attempts: 3, Initial: time.Second, Max: 10 * time.Second}

// BackoffFromEnv reads RETRY_ATTEMPTS, RETRY_INITIAL_DELAY and RETRY_MAX_DELAY.
func BackoffFromEnv() Backoff {
	return Backoff{
		Attempts: int(GetEnvNumeric("RETRY_ATTEMPTS", DefaultBackoff.Attempts)),
		Initial:  GetEnvDuration("RETRY_INITIAL_DELAY", DefaultBackoff.Initial),
		Max:      GetEnvDuration("RETRY_MAX_DELAY", DefaultBackoff.Max),
	}
}

// Delay returns the wait before the given retry (0 based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for range attempt {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// RetryWithBackoff calls fn until it succeeds, the attempts are exhausted,
// ctx is done or retryable reports false for the returned error. A nil
// retryable retries every error.
func RetryWithBackoff[T any](ctx context.Context, b Backoff, retryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var zero T
	var lastErr error
	for i := range attempts {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
		if retryable != nil && !retryable(err) {
			return zero, err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(b.Delay(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// RetryErrWithBackoff is RetryWithBackoff for functions without a result.
func RetryErrWithBackoff(ctx context.Context, b Backoff, retryable func(error) bool, fn func(context.Context) error) error {
	_, err := RetryWithBackoff(ctx, b, retryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
