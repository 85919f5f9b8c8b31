package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MiddlewareMetrics holds Prometheus metrics for middleware operations.
type MiddlewareMetrics struct {
	rateLimitAllowed  *prometheus.CounterVec
	rateLimitRejected *prometheus.CounterVec
	rateLimitErrors   prometheus.Counter

	corsPreflights      prometheus.Counter
	corsOriginsRejected prometheus.Counter

	circuitBreakerRequests    *prometheus.CounterVec
	circuitBreakerTransitions *prometheus.CounterVec

	requestIDsGenerated prometheus.Counter
}

var (
	middlewareMetrics     *MiddlewareMetrics
	middlewareMetricsOnce sync.Once
)

// GetMiddlewareMetrics returns the singleton middleware metrics instance.
func GetMiddlewareMetrics() *MiddlewareMetrics {
	middlewareMetricsOnce.Do(func() {
		middlewareMetrics = newMiddlewareMetrics()
	})
	return middlewareMetrics
}

//nolint:funlen // metric initialization requires many declarations
func newMiddlewareMetrics() *MiddlewareMetrics {
	return &MiddlewareMetrics{
		rateLimitAllowed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "middleware",
				Name:      "rate_limit_allowed_total",
				Help: "Total number of requests " +
					"allowed by rate limiter",
			},
			[]string{"limiter"},
		),
		rateLimitRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "middleware",
				Name:      "rate_limit_rejected_total",
				Help: "Total number of requests " +
					"rejected by rate limiter",
			},
			[]string{"limiter"},
		),
		rateLimitErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "middleware",
				Name:      "rate_limit_errors_total",
				Help: "Total number of rate limiter " +
					"backend errors (fail-open)",
			},
		),
		corsPreflights: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "middleware",
				Name:      "cors_preflights_total",
				Help: "Total number of CORS preflight " +
					"requests answered",
			},
		),
		corsOriginsRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "middleware",
				Name:      "cors_origins_rejected_total",
				Help: "Total number of requests with " +
					"a disallowed origin",
			},
		),
		circuitBreakerRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "middleware",
				Name: "circuit_breaker_" +
					"requests_total",
				Help: "Total number of requests " +
					"through circuit breaker by state",
			},
			[]string{"name", "state"},
		),
		circuitBreakerTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "middleware",
				Name: "circuit_breaker_" +
					"transitions_total",
				Help: "Total number of circuit " +
					"breaker state transitions",
			},
			[]string{"name", "from", "to"},
		),
		requestIDsGenerated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "middleware",
				Name:      "request_ids_generated_total",
				Help: "Total number of request IDs " +
					"generated for requests without one",
			},
		),
	}
}
