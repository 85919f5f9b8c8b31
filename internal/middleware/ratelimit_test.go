package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoretsky/pipegate/internal/pipeline"
	"github.com/dkoretsky/pipegate/internal/ratelimit"
)

type failingLimiter struct{}

func (f *failingLimiter) Allow(context.Context, string) (*ratelimit.Result, error) {
	return nil, errors.New("backend down")
}

func (f *failingLimiter) Reset(context.Context, string) error { return nil }

func (f *failingLimiter) Close() error { return nil }

func newLimitedRequest(remoteAddr string) *pipeline.Request {
	req := pipeline.NewRequest(http.MethodGet, "/api/users")
	req.RemoteAddr = remoteAddr
	return req
}

func TestRateLimit_AllowCarriesHeaders(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewClientWindowLimiter(5, time.Minute)
	defer limiter.Close()

	m := NewRateLimit("/api", limiter)

	verdict, err := m.Before(context.Background(), newLimitedRequest("10.0.0.1:1234"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.ActionContinueWithHeaders, verdict.Action)
	assert.Equal(t, "5", verdict.Headers.Get(HeaderRateLimitLimit))
	assert.Equal(t, "4", verdict.Headers.Get(HeaderRateLimitRemaining))
	assert.NotEmpty(t, verdict.Headers.Get(HeaderRateLimitReset))
}

func TestRateLimit_RejectShortCircuits(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewClientWindowLimiter(1, time.Minute)
	defer limiter.Close()

	m := NewRateLimit("/api", limiter)
	ctx := context.Background()

	_, err := m.Before(ctx, newLimitedRequest("10.0.0.1:1234"))
	require.NoError(t, err)

	verdict, err := m.Before(ctx, newLimitedRequest("10.0.0.1:1234"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.ActionShortCircuit, verdict.Action)
	require.NotNil(t, verdict.Response)
	assert.Equal(t, http.StatusTooManyRequests, verdict.Response.StatusCode)
	assert.Equal(t, ErrRateLimitExceeded, string(verdict.Response.Body))
	assert.Equal(t, "0", verdict.Response.Header.Get(HeaderRateLimitRemaining))
	assert.NotEmpty(t, verdict.Response.Header.Get(HeaderRetryAfter))
}

func TestRateLimit_DistinctClientsIndependent(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewClientWindowLimiter(1, time.Minute)
	defer limiter.Close()

	m := NewRateLimit("/api", limiter)
	ctx := context.Background()

	verdict, err := m.Before(ctx, newLimitedRequest("10.0.0.1:1234"))
	require.NoError(t, err)
	assert.Equal(t, pipeline.ActionContinueWithHeaders, verdict.Action)

	verdict, err = m.Before(ctx, newLimitedRequest("10.0.0.2:1234"))
	require.NoError(t, err)
	assert.Equal(t, pipeline.ActionContinueWithHeaders, verdict.Action)
}

func TestRateLimit_FailOpenOnLimiterError(t *testing.T) {
	t.Parallel()

	m := NewRateLimit("/api", &failingLimiter{})

	verdict, err := m.Before(context.Background(), newLimitedRequest("10.0.0.1:1234"))
	require.NoError(t, err)
	assert.Equal(t, pipeline.ActionContinue, verdict.Action)
}

func TestRateLimit_CustomRejectionMessage(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewClientWindowLimiter(1, time.Minute)
	defer limiter.Close()

	m := NewRateLimit("/api", limiter,
		WithRejectionMessage(`{"error":"slow down"}`))
	ctx := context.Background()

	_, err := m.Before(ctx, newLimitedRequest("10.0.0.1:1234"))
	require.NoError(t, err)

	verdict, err := m.Before(ctx, newLimitedRequest("10.0.0.1:1234"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.ActionShortCircuit, verdict.Action)
	assert.Equal(t, `{"error":"slow down"}`, string(verdict.Response.Body))
}

func TestRateLimit_ProxyModeUsesForwardedFor(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewClientWindowLimiter(1, time.Minute)
	defer limiter.Close()

	m := NewRateLimit("/api", limiter, WithProxyMode(true))
	ctx := context.Background()

	req := newLimitedRequest("10.0.0.1:1234")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	_, err := m.Before(ctx, req)
	require.NoError(t, err)

	// Same upstream proxy, different forwarded client: separate window.
	req2 := newLimitedRequest("10.0.0.1:1234")
	req2.Header.Set("X-Forwarded-For", "203.0.113.8")

	verdict, err := m.Before(ctx, req2)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ActionContinueWithHeaders, verdict.Action)

	// Same forwarded client again: shared window, now exhausted.
	verdict, err = m.Before(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ActionShortCircuit, verdict.Action)
}

func TestRateLimit_GlobalLimiter(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewClientWindowLimiter(100, time.Minute)
	defer limiter.Close()

	global := ratelimit.NewGlobalLimiter(1, 1)

	m := NewRateLimit("/api", limiter, WithGlobalLimiter(global))
	ctx := context.Background()

	verdict, err := m.Before(ctx, newLimitedRequest("10.0.0.1:1234"))
	require.NoError(t, err)
	assert.Equal(t, pipeline.ActionContinueWithHeaders, verdict.Action)

	// Different client, but the global bucket is drained.
	verdict, err = m.Before(ctx, newLimitedRequest("10.0.0.2:1234"))
	require.NoError(t, err)
	assert.Equal(t, pipeline.ActionShortCircuit, verdict.Action)
	assert.Equal(t, http.StatusTooManyRequests, verdict.Response.StatusCode)
}

func TestCeilSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want int
	}{
		{"zero", 0, 0},
		{"negative", -time.Second, 0},
		{"sub-second rounds up", 300 * time.Millisecond, 1},
		{"exact second", time.Second, 1},
		{"just over a second", time.Second + time.Millisecond, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ceilSeconds(tt.d))
		})
	}
}
