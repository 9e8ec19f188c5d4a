// Package metrics provides Prometheus metrics for the chat relay.
//
// # Metrics Categories
//
//   - Relay: chat requests by status and stream terminal, request duration,
//     delivered frames
//   - Upstream: connect attempts by outcome and time to response headers
//   - Audit: sink writes by backend and result
//   - Store: session operations, exports, feedback and retention pruning
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//
//	handler := relay.NewHandler(client, relayCfg, relay.WithObserver(collector))
//	recorder := audit.NewRecorder(sink, recCfg, collector)
//
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Label values are drawn from small fixed sets (status codes, terminal
// names, backend names), so no cardinality limiting is applied.
package metrics
