// Package ratelimit bounds per-client request rates. The primary
// implementation is an in-memory per-key window limiter with a background
// sweep; a Redis-backed variant covers multi-instance deployments and a
// token-bucket variant caps the aggregate rate.
package ratelimit

import (
	"context"
	"time"
)

// Limiter is the interface for rate limiting.
type Limiter interface {
	// Allow checks whether one request is allowed for the given key and
	// returns the window accounting either way.
	Allow(ctx context.Context, key string) (*Result, error)

	// Reset clears the rate limit state for the given key.
	Reset(ctx context.Context, key string) error

	// Close releases any resources held by the limiter.
	Close() error
}

// Result is the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAfter is the time until the current window expires.
	ResetAfter time.Duration

	// RetryAfter is the time to wait before retrying; zero when allowed.
	RetryAfter time.Duration
}

// NoopLimiter allows every request.
type NoopLimiter struct{}

// NewNoopLimiter creates a limiter that never rejects.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return &Result{Allowed: true}, nil
}

// Reset implements Limiter.
func (l *NoopLimiter) Reset(ctx context.Context, key string) error {
	return nil
}

// Close implements Limiter.
func (l *NoopLimiter) Close() error {
	return nil
}
