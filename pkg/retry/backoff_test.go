package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBackoffStaysWithinBounds(t *testing.T) {
	cfg := Config{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}

	for retry := 0; retry < 10; retry++ {
		backoff := cfg.nextBackoff(retry)
		assert.GreaterOrEqual(t, backoff, 50*time.Millisecond)
		assert.LessOrEqual(t, backoff, 1500*time.Millisecond)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	cfg := Config{
		MaxRetries:      5,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
	}

	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return assert.AnError
		}
		return nil
	}, func(error) bool { return true }, cfg)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	cfg := DefaultConfig()

	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return assert.AnError
	}, func(error) bool { return false }, cfg)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	cfg := Config{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
	}

	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return assert.AnError
	}, func(error) bool { return true }, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 3, attempts)
}
