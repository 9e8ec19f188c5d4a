package metrics

import (
	"strconv"
	"time"

	"chatrelay/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns every Prometheus metric of the relay. It implements
// relay.Observer and audit.Observer so the request path can report without
// knowing about Prometheus.
//
// All Record and Observe methods are no-ops when metrics are disabled.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	relay    *RelayMetrics
	upstream *UpstreamMetrics
	audit    *AuditMetrics
	store    *StoreMetrics
}

// NewCollector creates a collector and registers its metrics with registry.
// A nil registry gets a fresh one with the Go runtime and process collectors.
//
// Example:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	mux.Handle("/metrics", collector.Handler())
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = config.DefaultDurationBuckets
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		relay:    NewRelayMetrics(cfg, registry),
		upstream: NewUpstreamMetrics(cfg, registry),
		audit:    NewAuditMetrics(cfg, registry),
		store:    NewStoreMetrics(cfg, registry),
	}
}

// ObserveUpstream records one upstream connect attempt and its outcome.
func (c *Collector) ObserveUpstream(outcome string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.upstream.Observe(outcome, d)
}

// ObserveRequest records a finished chat request. terminal is empty for
// requests answered with an error document.
func (c *Collector) ObserveRequest(status int, terminal string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	if terminal == "" {
		terminal = "none"
	}
	c.relay.ObserveRequest(strconv.Itoa(status), terminal, d)
}

// ObserveFrame counts one event-stream frame delivered to a client.
func (c *Collector) ObserveFrame() {
	if !c.config.Enabled {
		return
	}
	c.relay.framesTotal.Inc()
}

// ObserveAuditWrite records an audit sink write.
func (c *Collector) ObserveAuditWrite(backend string, err error, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.audit.Observe(backend, err, d)
}

// RecordSessionOperation counts a session store operation
// ("save", "load", "list", "delete", "prune").
func (c *Collector) RecordSessionOperation(operation string, err error) {
	if !c.config.Enabled {
		return
	}
	c.store.RecordSession(operation, err)
}

// RecordExport counts a rendered conversation export.
func (c *Collector) RecordExport(format string) {
	if !c.config.Enabled {
		return
	}
	c.store.exportsTotal.WithLabelValues(format).Inc()
}

// RecordFeedback counts a like or dislike.
func (c *Collector) RecordFeedback(feedbackType string) {
	if !c.config.Enabled {
		return
	}
	c.store.feedbackTotal.WithLabelValues(feedbackType).Inc()
}

// RecordPruned counts entries removed by a retention job.
func (c *Collector) RecordPruned(target string, n int64) {
	if !c.config.Enabled || n <= 0 {
		return
	}
	c.store.prunedTotal.WithLabelValues(target).Add(float64(n))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
