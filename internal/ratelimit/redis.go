package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkoretsky/pipegate/internal/observability"
)

// windowIncrScript atomically increments a client's counter and anchors the
// key's TTL at the first increment, so the window starts at the client's
// first request and resets only when the key expires.
// KEYS[1] = counter key, ARGV[1] = window in milliseconds.
var windowIncrScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return {count, ttl}
`)

// RedisLimiter implements the per-client window over Redis so multiple
// instances share one set of windows. Stale keys expire via TTL; no sweep
// goroutine is needed.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	logger observability.Logger
}

// RedisLimiterOption is a functional option for the Redis limiter.
type RedisLimiterOption func(*RedisLimiter)

// WithRedisPrefix sets the key prefix, default "ratelimit:".
func WithRedisPrefix(prefix string) RedisLimiterOption {
	return func(l *RedisLimiter) {
		l.prefix = prefix
	}
}

// WithRedisLogger sets the logger for the limiter.
func WithRedisLogger(logger observability.Logger) RedisLimiterOption {
	return func(l *RedisLimiter) {
		l.logger = logger
	}
}

// NewRedisLimiter creates a Redis-backed window limiter.
func NewRedisLimiter(
	client *redis.Client,
	limit int,
	window time.Duration,
	opts ...RedisLimiterOption,
) *RedisLimiter {
	l := &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	raw, err := windowIncrScript.Run(ctx, l.client,
		[]string{l.prefix + key},
		l.window.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return nil, fmt.Errorf("unexpected rate limit script reply: %v", raw)
	}

	count, _ := values[0].(int64)
	ttlMs, _ := values[1].(int64)

	allowed := count <= int64(l.limit)

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	resetAfter := time.Duration(ttlMs) * time.Millisecond
	if resetAfter < 0 {
		resetAfter = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = resetAfter
	}

	return &Result{
		Allowed:    allowed,
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
		RetryAfter: retryAfter,
	}, nil
}

// Reset implements Limiter.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("rate limit reset failed: %w", err)
	}
	return nil
}

// Close implements Limiter.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
