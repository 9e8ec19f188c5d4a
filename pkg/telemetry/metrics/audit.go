package metrics

import (
	"time"

	"chatrelay/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics tracks audit sink writes.
type AuditMetrics struct {
	writesTotal   *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec
}

// NewAuditMetrics creates and registers audit metrics.
func NewAuditMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "writes_total",
				Help:      "Total number of audit record writes by backend and result",
			},
			[]string{"backend", "result"},
		),
		writeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "write_duration_seconds",
				Help:      "Duration of audit sink writes in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(am.writesTotal, am.writeDuration)
	return am
}

// Observe records one write. Dropped records have a zero duration and are
// only counted.
func (am *AuditMetrics) Observe(backend string, err error, d time.Duration) {
	am.writesTotal.WithLabelValues(backend, resultLabel(err)).Inc()
	if d > 0 {
		am.writeDuration.WithLabelValues(backend).Observe(d.Seconds())
	}
}
