package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRedisLimiter(client, limit, window)

	t.Cleanup(func() {
		_ = limiter.Close()
	})

	return limiter, mr
}

func TestRedisLimiter_Allow(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestRedisLimiter(t, 2, time.Second)
	ctx := context.Background()

	r1, err := limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, r1.Allowed)
	assert.Equal(t, 1, r1.Remaining)

	r2, err := limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, r2.Allowed)
	assert.Equal(t, 0, r2.Remaining)

	r3, err := limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, r3.Allowed)
	assert.Equal(t, 0, r3.Remaining)
	assert.Greater(t, r3.RetryAfter, time.Duration(0))
}

func TestRedisLimiter_WindowExpiry(t *testing.T) {
	t.Parallel()

	limiter, mr := newTestRedisLimiter(t, 1, time.Second)
	ctx := context.Background()

	r, err := limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, r.Allowed)

	r, err = limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, r.Allowed)

	mr.FastForward(2 * time.Second)

	r, err = limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
}

func TestRedisLimiter_Reset(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestRedisLimiter(t, 1, time.Minute)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "client-a")
	require.NoError(t, err)

	r, err := limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, r.Allowed)

	require.NoError(t, limiter.Reset(ctx, "client-a"))

	r, err = limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
}

func TestRedisLimiter_KeysIndependent(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestRedisLimiter(t, 1, time.Minute)
	ctx := context.Background()

	r, err := limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, r.Allowed)

	r, err = limiter.Allow(ctx, "client-b")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
}

func TestRedisLimiter_ServerDown(t *testing.T) {
	t.Parallel()

	limiter, mr := newTestRedisLimiter(t, 1, time.Minute)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "client-a")
	assert.Error(t, err)
}
