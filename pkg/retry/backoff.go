// Package retry implements exponential backoff with jitter for operations
// that are worth repeating, like establishing the Home Assistant session.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config defines the backoff-retry behavior.
type Config struct {
	// MaxRetries is the maximum number of retries. Negative means unlimited.
	MaxRetries int
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration
	// Multiplier is the factor by which the retry interval increases.
	Multiplier float64
	// RandomizationFactor is the jitter applied to each interval (0.0-1.0).
	RandomizationFactor float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:          5,
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
	}
}

// nextBackoff calculates the delay before the given retry attempt.
func (c *Config) nextBackoff(retry int) time.Duration {
	backoff := float64(c.InitialInterval) * math.Pow(c.Multiplier, float64(retry))
	if backoff > float64(c.MaxInterval) {
		backoff = float64(c.MaxInterval)
	}

	delta := c.RandomizationFactor * backoff
	backoff = backoff - delta + rand.Float64()*2*delta //nolint:gosec

	return time.Duration(backoff)
}

// RetryableFunc represents a function that can be retried.
type RetryableFunc func() error

// IsRetryable determines whether an error should be retried.
type IsRetryable func(error) bool

// Do executes fn, retrying retryable errors per cfg until success, a
// non-retryable error, retry exhaustion, or context cancellation.
func Do(ctx context.Context, fn RetryableFunc, isRetryable IsRetryable, cfg Config) error {
	var lastErr error

	for attempt := 0; cfg.MaxRetries < 0 || attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return fmt.Errorf("non-retryable error: %w", err)
		}

		if attempt == cfg.MaxRetries {
			break
		}

		timer := time.NewTimer(cfg.nextBackoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
