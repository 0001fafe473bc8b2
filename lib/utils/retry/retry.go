package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// MaxRetriesExceededError indicates that the maximum number of retry attempts has been exceeded
type MaxRetriesExceededError struct {
	MaxAttempts int
	LastError   error
}

func (e *MaxRetriesExceededError) Error() string {
	if e.LastError != nil {
		return fmt.Sprintf("max retry attempts exceeded (%d attempts): %s", e.MaxAttempts, e.LastError)
	}
	return fmt.Sprintf("max retry attempts exceeded (%d attempts)", e.MaxAttempts)
}

func (e *MaxRetriesExceededError) Unwrap() error {
	return e.LastError
}

// ContextCancelledError indicates that the context was cancelled while waiting to retry
type ContextCancelledError struct {
	CtxErr    error
	LastError error
}

func (e *ContextCancelledError) Error() string {
	msg := "context cancelled during retry: " + e.CtxErr.Error()
	if e.LastError != nil {
		msg += ", last error: " + e.LastError.Error()
	}
	return msg
}

func (e *ContextCancelledError) Unwrap() []error {
	return []error{e.CtxErr, e.LastError}
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	// MaxAttempts is the number of retries after the first call
	MaxAttempts int
	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration
	// MaxDelay caps the retry delay
	MaxDelay time.Duration
	// Multiplier increases delay after each retry
	Multiplier float64
	// Jitter applies ±Jitter (fraction) random variation to each delay
	Jitter float64
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error)
	// ShouldRetry determines if an error should be retried. nil retries nothing.
	ShouldRetry func(err error) bool
	// MinDelay lets the failed call raise the wait before the next attempt,
	// e.g. to honor a server-provided backoff. It is not capped by MaxDelay.
	MinDelay func(err error) time.Duration
}

// WithRetryForResult executes fn, retrying errors accepted by config.ShouldRetry
// with exponential backoff. Non-retryable errors are returned unchanged.
func WithRetryForResult[T any](ctx context.Context, config RetryConfig, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		if config.ShouldRetry == nil || !config.ShouldRetry(err) {
			return result, err
		}
		if attempt >= config.MaxAttempts {
			return zero, &MaxRetriesExceededError{
				MaxAttempts: config.MaxAttempts,
				LastError:   err,
			}
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err)
		}

		delay := calculateDelayWithJitter(config.InitialDelay, config.Multiplier, config.Jitter, attempt)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
		if config.MinDelay != nil {
			delay = max(delay, config.MinDelay(err))
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &ContextCancelledError{
				CtxErr:    ctx.Err(),
				LastError: err,
			}
		case <-timer.C:
		}
	}
}

// calculateDelayWithJitter returns initial * multiplier^attempt, varied by ±jitter
func calculateDelayWithJitter(initial time.Duration, multiplier float64, jitter float64, attempt int) time.Duration {
	if multiplier <= 0 {
		multiplier = 1
	}
	baseDelay := float64(initial) * math.Pow(multiplier, float64(attempt))

	if jitter > 0 {
		jitterAmount := (rand.Float64()*2 - 1) * jitter
		baseDelay = baseDelay * (1 + jitterAmount)
	}

	return time.Duration(baseDelay)
}
