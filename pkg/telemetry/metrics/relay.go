package metrics

import (
	"time"

	"chatrelay/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks inbound chat requests.
//
// Metrics:
//   - <ns>_relay_requests_total: requests by response status and stream terminal
//   - <ns>_relay_request_duration_seconds: time from request to terminal outcome
//   - <ns>_relay_stream_frames_total: event-stream frames delivered to clients
type RelayMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	framesTotal     prometheus.Counter
}

// NewRelayMetrics creates and registers relay metrics.
func NewRelayMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *RelayMetrics {
	rm := &RelayMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "requests_total",
				Help:      "Total number of chat requests by status and stream terminal",
			},
			[]string{"status", "terminal"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "request_duration_seconds",
				Help:      "Duration of chat requests in seconds, including streaming",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"terminal"},
		),
		framesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "stream_frames_total",
				Help:      "Total number of event-stream frames delivered to clients",
			},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration, rm.framesTotal)
	return rm
}

// ObserveRequest records one finished request.
func (rm *RelayMetrics) ObserveRequest(status, terminal string, d time.Duration) {
	rm.requestsTotal.WithLabelValues(status, terminal).Inc()
	rm.requestDuration.WithLabelValues(terminal).Observe(d.Seconds())
}
