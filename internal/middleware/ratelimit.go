package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dkoretsky/pipegate/internal/observability"
	"github.com/dkoretsky/pipegate/internal/pipeline"
	"github.com/dkoretsky/pipegate/internal/ratelimit"
)

// RateLimit is a pre-middleware that enforces a per-client request limit.
// Allowed requests carry X-RateLimit-* headers forward to the final
// response; rejected requests short-circuit with 429. Limiter backend
// errors fail open.
type RateLimit struct {
	name             string
	scope            string
	limiter          ratelimit.Limiter
	global           ratelimit.Limiter
	proxyMode        bool
	rejectionMessage string
	logger           observability.Logger
}

// RateLimitOption is a functional option for the rate limit middleware.
type RateLimitOption func(*RateLimit)

// WithRateLimitLogger sets the logger.
func WithRateLimitLogger(logger observability.Logger) RateLimitOption {
	return func(m *RateLimit) {
		m.logger = logger
	}
}

// WithProxyMode trusts the first X-Forwarded-For entry as the client key.
func WithProxyMode(enabled bool) RateLimitOption {
	return func(m *RateLimit) {
		m.proxyMode = enabled
	}
}

// WithRejectionMessage overrides the 429 response body.
func WithRejectionMessage(msg string) RateLimitOption {
	return func(m *RateLimit) {
		if msg != "" {
			m.rejectionMessage = msg
		}
	}
}

// WithGlobalLimiter adds an aggregate limiter checked before the
// per-client one.
func WithGlobalLimiter(global ratelimit.Limiter) RateLimitOption {
	return func(m *RateLimit) {
		m.global = global
	}
}

// NewRateLimit creates the rate limit middleware for the given path scope.
func NewRateLimit(scope string, limiter ratelimit.Limiter, opts ...RateLimitOption) *RateLimit {
	m := &RateLimit{
		name:             "ratelimit",
		scope:            scope,
		limiter:          limiter,
		rejectionMessage: ErrRateLimitExceeded,
		logger:           observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Name implements pipeline.Middleware.
func (m *RateLimit) Name() string { return m.name }

// Scope implements pipeline.Middleware.
func (m *RateLimit) Scope() string { return m.scope }

// Before implements pipeline.PreMiddleware.
func (m *RateLimit) Before(ctx context.Context, req *pipeline.Request) (pipeline.Verdict, error) {
	mm := GetMiddlewareMetrics()

	if m.global != nil {
		res, err := m.global.Allow(ctx, "")
		if err == nil && !res.Allowed {
			mm.rateLimitRejected.WithLabelValues("global").Inc()
			return pipeline.ShortCircuit(m.reject(res)), nil
		}
	}

	key := ratelimit.ClientKey(req, m.proxyMode)

	res, err := m.limiter.Allow(ctx, key)
	if err != nil {
		mm.rateLimitErrors.Inc()
		m.logger.Warn("rate limiter unavailable, allowing request",
			observability.String("client", key),
			observability.Error(err),
		)
		return pipeline.Continue(), nil
	}

	if !res.Allowed {
		mm.rateLimitRejected.WithLabelValues("client").Inc()
		m.logger.Warn("rate limit exceeded",
			observability.String("client", key),
			observability.String("path", req.Path),
			observability.Int("limit", res.Limit),
		)
		return pipeline.ShortCircuit(m.reject(res)), nil
	}

	mm.rateLimitAllowed.WithLabelValues("client").Inc()

	headers := make(http.Header)
	setLimitHeaders(headers, res)

	return pipeline.ContinueWithHeaders(headers), nil
}

// reject builds the 429 response returned verbatim to the client.
func (m *RateLimit) reject(res *ratelimit.Result) *pipeline.Response {
	resp := pipeline.JSONResponse(http.StatusTooManyRequests, m.rejectionMessage)
	setLimitHeaders(resp.Header, res)
	resp.Header.Set(HeaderRetryAfter, strconv.Itoa(ceilSeconds(res.RetryAfter)))
	return resp
}

func setLimitHeaders(h http.Header, res *ratelimit.Result) {
	h.Set(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
	h.Set(HeaderRateLimitReset, strconv.Itoa(ceilSeconds(res.ResetAfter)))
}

// ceilSeconds rounds up so clients never retry before the window resets.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
