package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryFixed_SucceedsAfterTransientFailures(t *testing.T) {
	var seen []int

	err := RetryFixed(context.Background(), 5, 0, func(attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestRetryFixed_AllFail(t *testing.T) {
	calls := 0

	err := RetryFixed(context.Background(), 3, time.Millisecond, func(int) error {
		calls++
		return errors.New("persistent error")
	})

	assert.EqualError(t, err, "persistent error")
	assert.Equal(t, 3, calls)
}

func TestRetryFixed_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := RetryFixed(ctx, 3, time.Hour, func(int) error {
		calls++
		cancel()
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryFixed_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = RetryFixed(context.Background(), 0, 0, func(int) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, calls)
}
