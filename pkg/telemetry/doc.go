// Package telemetry groups the observability packages of the chat relay.
//
// # Components
//
//   - logging: slog handlers with credential redaction and request-scoped fields
//   - metrics: Prometheus collectors for relay outcomes and audit writes
//   - tracing: OpenTelemetry spans exported over OTLP/gRPC
//   - health: liveness and readiness endpoints
package telemetry
