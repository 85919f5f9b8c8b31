package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ExecutorMetrics holds Prometheus metrics for the middleware executor.
type ExecutorMetrics struct {
	requestsTotal     prometheus.Counter
	shortCircuits     *prometheus.CounterVec
	middlewareErrors  *prometheus.CounterVec
	panicsRecovered   prometheus.Counter
	requestDuration   prometheus.Histogram
	pendingHeaderSets prometheus.Counter
}

var (
	executorMetrics     *ExecutorMetrics
	executorMetricsOnce sync.Once
)

// GetExecutorMetrics returns the singleton executor metrics instance.
func GetExecutorMetrics() *ExecutorMetrics {
	executorMetricsOnce.Do(func() {
		executorMetrics = newExecutorMetrics()
	})
	return executorMetrics
}

func newExecutorMetrics() *ExecutorMetrics {
	return &ExecutorMetrics{
		requestsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "pipeline",
				Name:      "requests_total",
				Help:      "Total number of requests processed by the executor",
			},
		),
		shortCircuits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "pipeline",
				Name:      "short_circuits_total",
				Help:      "Total number of requests short-circuited, by middleware",
			},
			[]string{"middleware"},
		),
		middlewareErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "pipeline",
				Name:      "middleware_errors_total",
				Help:      "Total number of middleware errors converted to 500 responses",
			},
			[]string{"middleware"},
		),
		panicsRecovered: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "pipeline",
				Name:      "panics_recovered_total",
				Help:      "Total number of panics recovered at the executor boundary",
			},
		),
		requestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pipegate",
				Subsystem: "pipeline",
				Name:      "request_duration_seconds",
				Help:      "Time spent inside the executor per request",
				Buckets:   prometheus.DefBuckets,
			},
		),
		pendingHeaderSets: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "pipeline",
				Name:      "pending_header_captures_total",
				Help:      "Total number of continue-with-headers captures in the pre phase",
			},
		),
	}
}
