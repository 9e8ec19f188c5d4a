package metrics

import (
	"time"

	"chatrelay/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics tracks calls to the completion API.
//
// Metrics:
//   - <ns>_upstream_connects_total: connect attempts by outcome
//   - <ns>_upstream_connect_duration_seconds: time until response headers
type UpstreamMetrics struct {
	connectsTotal   *prometheus.CounterVec
	connectDuration *prometheus.HistogramVec
}

// NewUpstreamMetrics creates and registers upstream metrics.
func NewUpstreamMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		connectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "connects_total",
				Help:      "Total number of upstream calls by outcome",
			},
			[]string{"outcome"},
		),
		connectDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "upstream",
				Name:      "connect_duration_seconds",
				Help:      "Time from sending the upstream request to receiving its headers",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(um.connectsTotal, um.connectDuration)
	return um
}

// Observe records one connect attempt.
func (um *UpstreamMetrics) Observe(outcome string, d time.Duration) {
	um.connectsTotal.WithLabelValues(outcome).Inc()
	um.connectDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
