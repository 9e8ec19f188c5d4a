// Package tracing configures OpenTelemetry for the relay.
//
// New installs a global tracer provider that exports over OTLP/gRPC, or a
// noop provider when tracing is disabled. The relay handler creates two
// spans per request:
//
//   - relay.connect: from sending the upstream request until its headers
//     arrive, with the outcome and upstream status as attributes
//   - relay.stream: the event-stream copy, with the terminal outcome and
//     frame count
//
// Inbound server spans and outbound client spans come from otelhttp, which
// also carries W3C trace context to the upstream API.
//
// # Configuration
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: "localhost:4317"
//	    insecure: true
//	    service_name: "chatrelay"
//	    sample_ratio: 0.1
package tracing
