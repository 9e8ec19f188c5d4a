package metrics

import (
	"chatrelay/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks the conversation side features: saved sessions,
// exports, feedback and retention.
type StoreMetrics struct {
	sessionOpsTotal *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec
	feedbackTotal   *prometheus.CounterVec
	prunedTotal     *prometheus.CounterVec
}

// NewStoreMetrics creates and registers store metrics.
func NewStoreMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		sessionOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "sessions",
				Name:      "operations_total",
				Help:      "Total number of session store operations by result",
			},
			[]string{"operation", "result"},
		),
		exportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "export",
				Name:      "documents_total",
				Help:      "Total number of conversation exports by format",
			},
			[]string{"format"},
		),
		feedbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "feedback",
				Name:      "submissions_total",
				Help:      "Total number of feedback submissions by type",
			},
			[]string{"type"},
		),
		prunedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "pruned_total",
				Help:      "Total number of entries removed by retention jobs",
			},
			[]string{"target"},
		),
	}

	registry.MustRegister(sm.sessionOpsTotal, sm.exportsTotal, sm.feedbackTotal, sm.prunedTotal)
	return sm
}

// RecordSession counts one session operation.
func (sm *StoreMetrics) RecordSession(operation string, err error) {
	sm.sessionOpsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}
