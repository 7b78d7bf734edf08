package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedInterval_SpacesRequests(t *testing.T) {
	interval := 30 * time.Millisecond
	limiter := NewFixedInterval(interval)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	require.NoError(t, limiter.Wait(context.Background()))
	elapsed := time.Since(start)

	// Two waits with a drained initial token cost at least two intervals.
	assert.GreaterOrEqual(t, elapsed, 2*interval)
}

func TestFixedInterval_FirstWaitBlocks(t *testing.T) {
	interval := 25 * time.Millisecond
	limiter := NewFixedInterval(interval)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))

	// The initial token is drained at construction, so even the first wait
	// enforces the interval.
	assert.GreaterOrEqual(t, time.Since(start), interval)
}

func TestFixedInterval_ContextCancellation(t *testing.T) {
	limiter := NewFixedInterval(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
}

func TestNoop_ReturnsImmediately(t *testing.T) {
	start := time.Now()
	require.NoError(t, Noop{}.Wait(context.Background()))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestNoop_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, Noop{}.Wait(ctx))
}
