// Package tracing configures OpenTelemetry tracing for localchat.
//
// When enabled, spans are exported over OTLP gRPC and W3C trace context is
// propagated both from incoming HTTP requests and to upstream backends, so a
// chat turn appears as one trace:
//
//	http.request
//	└── relay.session
//	    └── upstream.open
//
// When disabled, New installs nothing and all spans are no-ops.
//
// Configuration:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio        # always | never | ratio
//	    sample_ratio: 0.1
//	    endpoint: localhost:4317
//	    insecure: true
package tracing
