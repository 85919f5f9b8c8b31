package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopLimiter(t *testing.T) {
	t.Parallel()

	limiter := &NoopLimiter{}
	ctx := context.Background()

	for range 100 {
		r, err := limiter.Allow(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, r.Allowed)
	}

	assert.NoError(t, limiter.Reset(ctx, "client-a"))
	assert.NoError(t, limiter.Close())
}

func TestGlobalLimiter(t *testing.T) {
	t.Parallel()

	limiter := NewGlobalLimiter(1, 2)
	defer limiter.Close()

	ctx := context.Background()

	r, err := limiter.Allow(ctx, "ignored")
	require.NoError(t, err)
	assert.True(t, r.Allowed)

	r, err = limiter.Allow(ctx, "other-key-same-bucket")
	require.NoError(t, err)
	assert.True(t, r.Allowed)

	r, err = limiter.Allow(ctx, "ignored")
	require.NoError(t, err)
	assert.False(t, r.Allowed)
	assert.Equal(t, time.Second, r.RetryAfter)
}

func TestGlobalLimiter_SetRate(t *testing.T) {
	t.Parallel()

	limiter := NewGlobalLimiter(1, 1)
	defer limiter.Close()

	ctx := context.Background()

	r, err := limiter.Allow(ctx, "")
	require.NoError(t, err)
	assert.True(t, r.Allowed)

	r, err = limiter.Allow(ctx, "")
	require.NoError(t, err)
	assert.False(t, r.Allowed)

	limiter.SetRate(100, 10)

	r, err = limiter.Allow(ctx, "")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
}
