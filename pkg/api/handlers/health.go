package handlers

import (
	"net/http"
	"time"

	"mercator-hq/localchat/pkg/api"
	"mercator-hq/localchat/pkg/telemetry/health"
)

// HealthHandler handles liveness probes.
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a new health check handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// ServeHTTP implements http.Handler for liveness checks.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().Unix(),
	})
}

// ReadyHandler handles readiness probes.
type ReadyHandler struct {
	checker *health.Checker
}

// NewReadyHandler creates a readiness handler over the given checks.
func NewReadyHandler(checker *health.Checker) *ReadyHandler {
	return &ReadyHandler{checker: checker}
}

// ServeHTTP runs every check and answers 503 when a critical one fails.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Check(r.Context())
	code := http.StatusOK
	if !report.Ready() {
		code = http.StatusServiceUnavailable
	}
	api.WriteJSON(w, r, code, report)
}
