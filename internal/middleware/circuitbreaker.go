package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dkoretsky/pipegate/internal/observability"
	"github.com/dkoretsky/pipegate/internal/pipeline"
)

// cbTracer is the OTEL tracer used for circuit breaker operations.
var cbTracer = otel.Tracer("pipegate/circuitbreaker")

// errServerResponse marks a 5xx handler response as a breaker failure.
var errServerResponse = errors.New("server error response")

// CircuitBreakerStateFunc is called when the circuit breaker changes state.
// Parameters: name (circuit breaker name), state (0=closed, 1=half-open, 2=open).
type CircuitBreakerStateFunc func(name string, state int)

// CircuitBreaker wraps gobreaker.CircuitBreaker around a pipeline handler.
// Handler responses with a 5xx status count as failures; when the breaker
// opens the wrapped handler answers 503 without invoking the inner one.
type CircuitBreaker struct {
	cb            *gobreaker.CircuitBreaker
	logger        observability.Logger
	stateCallback CircuitBreakerStateFunc
}

// CircuitBreakerOption is a functional option for configuring the circuit breaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithCircuitBreakerLogger sets the logger for the circuit breaker.
func WithCircuitBreakerLogger(logger observability.Logger) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.logger = logger
	}
}

// WithCircuitBreakerStateCallback sets a callback for circuit breaker state changes.
func WithCircuitBreakerStateCallback(fn CircuitBreakerStateFunc) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.stateCallback = fn
	}
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(
	name string,
	threshold int,
	timeout time.Duration,
	opts ...CircuitBreakerOption,
) *CircuitBreaker {
	cb := &CircuitBreaker{
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(cb)
	}

	thresholdU32 := safeIntToUint32(threshold)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: thresholdU32,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= thresholdU32 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cb.logger.Info("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)

			mm := GetMiddlewareMetrics()
			mm.circuitBreakerTransitions.WithLabelValues(
				name, from.String(), to.String(),
			).Inc()

			// Record an OTEL span event for the state transition so it
			// appears in distributed traces that trigger the change.
			_, span := cbTracer.Start(context.Background(),
				"circuitbreaker.state_change",
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			span.AddEvent("state_change", trace.WithAttributes(
				attribute.String("circuitbreaker.name", name),
				attribute.String("circuitbreaker.from", from.String()),
				attribute.String("circuitbreaker.to", to.String()),
			))
			span.End()

			if cb.stateCallback != nil {
				cb.stateCallback(name, int(to))
			}
		},
	}

	cb.cb = gobreaker.NewCircuitBreaker(settings)
	return cb
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}

// Wrap returns a handler protected by the circuit breaker.
func (cb *CircuitBreaker) Wrap(next pipeline.Handler) pipeline.Handler {
	return func(ctx context.Context, req *pipeline.Request) *pipeline.Response {
		mm := GetMiddlewareMetrics()
		cbState := cb.State().String()

		var resp *pipeline.Response

		_, err := cb.cb.Execute(func() (interface{}, error) {
			mm.circuitBreakerRequests.WithLabelValues(
				cb.cb.Name(), cbState,
			).Inc()

			resp = next(ctx, req)

			// 5xx responses count as failures to trip the breaker
			if resp != nil && resp.StatusCode >= 500 {
				return nil, errServerResponse
			}
			return nil, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				mm.circuitBreakerRequests.WithLabelValues(
					cb.cb.Name(), "open",
				).Inc()

				cb.logger.Warn("circuit breaker rejected request",
					observability.String("path", req.Path),
					observability.String("state", cb.State().String()),
				)

				return pipeline.JSONResponse(
					http.StatusServiceUnavailable,
					ErrServiceUnavailable,
				)
			}
			// A 5xx response passes through unchanged; only the breaker
			// accounting treats it as a failure.
		}

		return resp
	}
}
