package body

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BodyMetrics holds Prometheus metrics for body decoding.
type BodyMetrics struct {
	multipartDecodes prometheus.Counter
	multipartParts   *prometheus.CounterVec
	multipartDropped prometheus.Counter
}

var (
	bodyMetrics     *BodyMetrics
	bodyMetricsOnce sync.Once
)

// GetBodyMetrics returns the singleton body metrics instance.
func GetBodyMetrics() *BodyMetrics {
	bodyMetricsOnce.Do(func() {
		bodyMetrics = newBodyMetrics()
	})
	return bodyMetrics
}

func newBodyMetrics() *BodyMetrics {
	return &BodyMetrics{
		multipartDecodes: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "body",
				Name:      "multipart_decodes_total",
				Help:      "Total number of multipart decode invocations",
			},
		),
		multipartParts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "body",
				Name:      "multipart_parts_total",
				Help:      "Total number of multipart parts decoded, by part type",
			},
			[]string{"type"},
		),
		multipartDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pipegate",
				Subsystem: "body",
				Name:      "multipart_parts_dropped_total",
				Help:      "Total number of multipart parts dropped (nameless or non-UTF-8)",
			},
		),
	}
}
