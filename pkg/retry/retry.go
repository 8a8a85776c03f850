// Package retry retries operations that fail transiently, with exponential
// backoff, jitter, and caller-supplied retryability predicates. The graph
// client uses it for whole-request retries; the cache core's download and
// upload loops keep their own flat-delay retries because they resume
// mid-operation rather than re-running a closure from scratch.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/auriora/onemount-vfscache/pkg/errors"
	"github.com/auriora/onemount-vfscache/pkg/logging"
)

// RetryableFunc is an operation that can be re-run safely.
type RetryableFunc func() error

// RetryableFuncWithResult is a RetryableFunc that produces a value.
type RetryableFuncWithResult[T any] func() (T, error)

// RetryableError reports whether an error is worth retrying.
type RetryableError func(error) bool

// Config controls the backoff schedule and which errors are retried.
type Config struct {
	// MaxRetries is the number of re-attempts after the initial one.
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the growing delay.
	MaxDelay time.Duration

	// Multiplier is the factor the delay grows by after each retry.
	Multiplier float64

	// Jitter is the maximum random fraction of the delay added on top.
	Jitter float64

	// RetryableErrors is consulted in order; any match retries.
	RetryableErrors []RetryableError
}

// DefaultConfig retries network, server, and rate-limit errors three times
// with a 1s..30s doubling backoff.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
		RetryableErrors: []RetryableError{
			IsRetryableNetworkError,
			IsRetryableServerError,
			IsRetryableRateLimitError,
		},
	}
}

// IsRetryableNetworkError retries transport-level failures.
func IsRetryableNetworkError(err error) bool {
	return errors.IsNetworkError(err)
}

// IsRetryableServerError retries 5xx-class operation errors.
func IsRetryableServerError(err error) bool {
	return errors.IsOperationError(err)
}

// IsRetryableRateLimitError retries 429-class resource-busy errors.
func IsRetryableRateLimitError(err error) bool {
	return errors.IsResourceBusyError(err)
}

func (c Config) retryable(err error) bool {
	for _, pred := range c.RetryableErrors {
		if pred(err) {
			return true
		}
	}
	return false
}

// Do runs op, retrying per config until it succeeds, fails with a
// non-retryable error, or exhausts the retry budget. The last error is
// returned unwrapped.
func Do(ctx context.Context, op RetryableFunc, config Config) error {
	_, err := DoWithResult(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, config)
	return err
}

// DoWithResult is Do for operations that produce a value. On context
// cancellation the zero value is returned with a wrapped ctx error.
func DoWithResult[T any](ctx context.Context, op RetryableFuncWithResult[T], config Config) (T, error) {
	delay := config.InitialDelay

	for attempt := 0; ; attempt++ {
		result, err := op()
		if err == nil || !config.retryable(err) || attempt == config.MaxRetries {
			return result, err
		}

		actualDelay := delay + time.Duration(rand.Float64()*float64(delay)*config.Jitter)
		logging.Info().
			Err(err).
			Int("attempt", attempt+1).
			Int("maxRetries", config.MaxRetries).
			Dur("delay", actualDelay).
			Msg("operation failed, retrying after delay")

		select {
		case <-time.After(actualDelay):
		case <-ctx.Done():
			var zero T
			return zero, errors.Wrap(ctx.Err(), "retry canceled by context")
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
}
