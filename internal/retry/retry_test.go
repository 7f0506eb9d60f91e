package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustionSurfacesOriginalError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), "op", 3, time.Millisecond, func() error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "attempted exactly maxRetries times")
	assert.Equal(t, boom, errors.Cause(err), "original error reachable, not lost in a wrapper")
	assert.Contains(t, err.Error(), "op")
	assert.Contains(t, err.Error(), "3 attempts")
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	hard := errors.New("malformed query")
	calls := 0
	err := Do(context.Background(), "op", 5, time.Millisecond, func() error {
		calls++
		return Permanent(hard)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, hard, errors.Cause(err))
}

func TestDoLinearBackoffBetweenAttempts(t *testing.T) {
	base := 20 * time.Millisecond
	start := time.Now()
	_ = Do(context.Background(), "op", 3, base, func() error {
		return errors.New("always")
	})
	// Sleeps of base*1 and base*2 between the three attempts.
	assert.GreaterOrEqual(t, time.Since(start), 3*base-5*time.Millisecond)
}

func TestDoCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := Do(ctx, "op", 3, time.Second, func() error {
		return errors.New("always")
	})
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
}
