package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// GlobalLimiter caps the aggregate request rate across all clients using a
// token bucket. It runs in front of the per-client limiter to protect the
// process itself during traffic spikes.
type GlobalLimiter struct {
	limiter *rate.Limiter
}

// NewGlobalLimiter creates a global limiter allowing rps requests per second
// with the given burst.
func NewGlobalLimiter(rps float64, burst int) *GlobalLimiter {
	return &GlobalLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Allow implements Limiter. The key is ignored; the bucket is shared.
func (l *GlobalLimiter) Allow(_ context.Context, _ string) (*Result, error) {
	if l.limiter.Allow() {
		return &Result{
			Allowed: true,
			Limit:   l.limiter.Burst(),
		}, nil
	}

	return &Result{
		Allowed:    false,
		Limit:      l.limiter.Burst(),
		RetryAfter: time.Second,
	}, nil
}

// Reset implements Limiter. The token bucket has no per-key state to reset.
func (l *GlobalLimiter) Reset(_ context.Context, _ string) error {
	return nil
}

// Close implements Limiter.
func (l *GlobalLimiter) Close() error {
	return nil
}

// SetRate updates the rate and burst at runtime.
func (l *GlobalLimiter) SetRate(rps float64, burst int) {
	l.limiter.SetLimit(rate.Limit(rps))
	l.limiter.SetBurst(burst)
}
