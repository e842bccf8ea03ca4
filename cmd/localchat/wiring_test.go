package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/localchat/pkg/backend"
	"mercator-hq/localchat/pkg/store"
	"mercator-hq/localchat/pkg/telemetry/health"
	"mercator-hq/localchat/pkg/upstream"
)

func TestHealthCheckerProbesBackends(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer up.Close()

	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	sel, err := backend.NewSelector(backend.Config{
		Default:       backend.VLLM,
		VLLMBaseURL:   up.URL + "/v1",
		OllamaBaseURL: downURL + "/v1",
	})
	require.NoError(t, err)

	current := sel
	st := store.NewMemoryStore()
	checker := newHealthChecker(st, upstream.NewClient(upstream.Config{}), func() *backend.Selector { return current })
	assert.Equal(t, []string{"backend.ollama", "backend.vllm", "store"}, checker.Names())

	report := checker.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, report.Status)
	assert.True(t, report.Ready())
	assert.Equal(t, health.StatusOK, report.Checks["backend.vllm"].Status)
	assert.Equal(t, health.StatusUnhealthy, report.Checks["backend.ollama"].Status)
	assert.Equal(t, health.StatusOK, report.Checks["store"].Status)

	moved, err := backend.NewSelector(backend.Config{
		Default:       backend.VLLM,
		VLLMBaseURL:   up.URL + "/v1",
		OllamaBaseURL: up.URL + "/v1",
	})
	require.NoError(t, err)
	current = moved

	report = checker.Check(context.Background())
	assert.Equal(t, health.StatusReady, report.Status, "probes follow the reloaded selector")
	assert.Equal(t, health.StatusOK, report.Checks["backend.ollama"].Status)
}
