// Package metrics exposes Prometheus metrics for chat sessions, upstream
// backends, the thread store and the HTTP surface.
//
// Metrics (namespace and subsystem default to "localchat" and "relay"):
//   - sessions_total{backend,outcome}
//   - session_duration_seconds{backend}
//   - sessions_active{backend}
//   - deltas_relayed_total{backend}
//   - upstream_errors_total{backend,status}
//   - persistence_errors_total{operation}
//   - http_requests_total{method,route,status}
//   - http_request_duration_seconds{method,route}
//
// The collector owns its registry; mount Handler at the configured path.
package metrics
