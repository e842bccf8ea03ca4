// Package telemetry groups the observability packages of localchat.
//
//   - logging: slog setup with request and thread ids from the context and
//     secret redaction
//   - metrics: Prometheus collector for relay sessions, upstream failures,
//     persistence failures and HTTP requests
//   - tracing: OpenTelemetry tracer with an OTLP/gRPC exporter and W3C trace
//     context propagation
//   - health: readiness checks for the store and the model backends
//
// The relay and HTTP layers depend on small interfaces rather than on these
// packages, so every component can run with telemetry disabled.
package telemetry
