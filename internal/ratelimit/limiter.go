// Package ratelimit provides the outbound request gate for remote API calls.
// The remote market-data API enforces a requests-per-minute quota on the free
// tier; serial, throttled access is the only way to stay under it without a
// retry/backoff layer.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates successive outbound requests. Wait blocks the calling
// goroutine until the next request is allowed, or until the context is
// cancelled.
type Limiter interface {
	Wait(ctx context.Context) error
}

// FixedInterval enforces a minimum spacing between successive requests.
// The gate is applied after every fetch, including the last one of a batch,
// so a full basket takes at least interval * len(basket).
type FixedInterval struct {
	limiter *rate.Limiter
}

// NewFixedInterval creates a limiter that admits one request per interval.
// The initial token is drained so the very first Wait already blocks for a
// full interval; the caller fetches first and waits after.
func NewFixedInterval(interval time.Duration) *FixedInterval {
	l := rate.NewLimiter(rate.Every(interval), 1)
	l.Allow()
	return &FixedInterval{limiter: l}
}

// Wait blocks until the interval has elapsed since the previous admission.
func (f *FixedInterval) Wait(ctx context.Context) error {
	return f.limiter.Wait(ctx)
}

// Noop is a zero-delay limiter for tests and offline recomputation paths.
type Noop struct{}

// Wait returns immediately unless the context is already cancelled.
func (Noop) Wait(ctx context.Context) error {
	return ctx.Err()
}
