package owm

import (
	"context"
	"testing"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAdmitsUnderLimit(t *testing.T) {
	mockClock := clock.NewMockClock()
	limiter := NewRateLimiter(3, mockClock)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Reserve(ctx))
	}

	stats := limiter.Stats()
	assert.Equal(t, 3, stats.RequestsLastMinute)
	assert.Equal(t, 3, stats.TotalTracked)
	assert.Equal(t, 3, stats.LimitPerMinute)
}

func TestRateLimiterCancelledWhileWaiting(t *testing.T) {
	mockClock := clock.NewMockClock()
	limiter := NewRateLimiter(1, mockClock)

	require.NoError(t, limiter.Reserve(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := limiter.Reserve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	mockClock := clock.NewMockClock()
	limiter := NewRateLimiter(2, mockClock)
	ctx := context.Background()

	require.NoError(t, limiter.Reserve(ctx))
	mockClock.AddTime(30 * time.Second)
	require.NoError(t, limiter.Reserve(ctx))

	// The first admission ages out after a full window.
	mockClock.AddTime(31 * time.Second)
	require.NoError(t, limiter.Reserve(ctx))

	stats := limiter.Stats()
	assert.Equal(t, 2, stats.RequestsLastMinute)
}

func TestRateLimiterBlocksUntilSlotFrees(t *testing.T) {
	mockClock := clock.NewMockClock()
	limiter := NewRateLimiter(1, mockClock)
	ctx := context.Background()

	require.NoError(t, limiter.Reserve(ctx))

	done := make(chan error, 1)
	go func() {
		done <- limiter.Reserve(ctx)
	}()

	// Advance in steps until the waiter's timer fires; the waiter computes
	// a 60s wait from the oldest admission.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Equal(t, 1, limiter.Stats().RequestsLastMinute)
			return
		case <-deadline:
			t.Fatal("Reserve never unblocked after the window elapsed")
		default:
			mockClock.AddTime(10 * time.Second)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRateLimiterRecord(t *testing.T) {
	mockClock := clock.NewMockClock()
	limiter := NewRateLimiter(5, mockClock)

	require.NoError(t, limiter.Reserve(context.Background()))
	limiter.Record()
	limiter.Record()

	stats := limiter.Stats()
	assert.Equal(t, 3, stats.RequestsLastMinute, "retried sends count against the window")
}
