package helpers

import (
	"context"
	"time"

	"sjsage522/autoread/logger"
)

// RetryPolicy describes how a single call is retried
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, values below 1 mean 1
	MaxAttempts int
	// Delay is the fixed wait between attempts
	Delay time.Duration
	// Backoff, when set, replaces Delay; attempt starts at 1
	Backoff func(attempt int) time.Duration
	// Retryable decides which failures are retried; nil retries all
	Retryable func(err error) bool
	// OnAttempt observes every attempt; err is nil on success
	OnAttempt func(attempt int, err error)
	// Name labels log lines
	Name string
}

// Retry runs op until it succeeds, fails with a non-retryable error or the
// policy runs out of attempts. The last error is returned on exhaustion.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = op(ctx)
		if policy.OnAttempt != nil {
			policy.OnAttempt(attempt, err)
		}
		if err == nil {
			return result, nil
		}

		if policy.Retryable != nil && !policy.Retryable(err) {
			return result, err
		}

		if attempt == attempts {
			logger.Error("%s failed after %d attempts: %v", policy.label(), attempts, err)
			break
		}

		wait := policy.Delay
		if policy.Backoff != nil {
			wait = policy.Backoff(attempt)
		}
		logger.Warn("%s attempt %d/%d failed: %v, retrying in %s", policy.label(), attempt, attempts, err, wait)

		if err := Sleep(ctx, wait); err != nil {
			return result, err
		}
	}

	return result, err
}

// Do is Retry for operations without a result value
func Do(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func (p RetryPolicy) label() string {
	if p.Name == "" {
		return "operation"
	}
	return p.Name
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
