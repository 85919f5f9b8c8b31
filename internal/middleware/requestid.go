package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dkoretsky/pipegate/internal/pipeline"
)

// RequestID is a pre-middleware that ensures every request carries an
// X-Request-ID header, generating one when the client did not send it. The
// ID is carried forward to the final response as a pending header.
type RequestID struct {
	name      string
	scope     string
	generator func() string
}

// RequestIDOption is a functional option for the request ID middleware.
type RequestIDOption func(*RequestID)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(generator func() string) RequestIDOption {
	return func(m *RequestID) {
		m.generator = generator
	}
}

// NewRequestID creates the request ID middleware for the given path scope.
func NewRequestID(scope string, opts ...RequestIDOption) *RequestID {
	m := &RequestID{
		name:  "request_id",
		scope: scope,
		generator: func() string {
			return uuid.New().String()
		},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Name implements pipeline.Middleware.
func (m *RequestID) Name() string { return m.name }

// Scope implements pipeline.Middleware.
func (m *RequestID) Scope() string { return m.scope }

// Before implements pipeline.PreMiddleware.
func (m *RequestID) Before(_ context.Context, req *pipeline.Request) (pipeline.Verdict, error) {
	requestID := req.Header.Get(HeaderXRequestID)
	if requestID == "" {
		requestID = m.generator()
		req.Header.Set(HeaderXRequestID, requestID)
		GetMiddlewareMetrics().requestIDsGenerated.Inc()
	}

	headers := make(http.Header)
	headers.Set(HeaderXRequestID, requestID)

	return pipeline.ContinueWithHeaders(headers), nil
}
