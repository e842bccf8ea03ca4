package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/localchat/pkg/config"
)

// Collector records all application metrics. A disabled collector accepts
// every call and records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	sessions *SessionMetrics
	http     *HTTPMetrics
}

// NewCollector creates a collector registered on registry. A nil registry
// gets a fresh one with Go runtime and process collectors.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "localchat"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "relay"
	}
	if len(cfg.DurationBuckets) == 0 {
		// Generation on local hardware runs from well under a second to minutes.
		cfg.DurationBuckets = []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		sessions: NewSessionMetrics(cfg, registry),
		http:     NewHTTPMetrics(cfg, registry),
	}
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// SessionStarted marks a chat session as active.
func (c *Collector) SessionStarted(backend string) {
	if !c.config.Enabled {
		return
	}
	c.sessions.active.WithLabelValues(backend).Inc()
}

// SessionFinished records a finished chat session.
func (c *Collector) SessionFinished(backend, outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.sessions.active.WithLabelValues(backend).Dec()
	c.sessions.total.WithLabelValues(backend, outcome).Inc()
	c.sessions.duration.WithLabelValues(backend).Observe(duration.Seconds())
}

// DeltaRelayed counts one token delta forwarded to a client.
func (c *Collector) DeltaRelayed(backend string) {
	if !c.config.Enabled {
		return
	}
	c.sessions.deltas.WithLabelValues(backend).Inc()
}

// UpstreamError counts a failed upstream call. Status 0 means no HTTP status
// was received or the stream broke after it started.
func (c *Collector) UpstreamError(backend string, status int) {
	if !c.config.Enabled {
		return
	}
	label := "none"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.sessions.upstreamErrors.WithLabelValues(backend, label).Inc()
}

// PersistenceError counts a failed store operation.
func (c *Collector) PersistenceError(op string) {
	if !c.config.Enabled {
		return
	}
	c.sessions.persistenceErrors.WithLabelValues(op).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.http.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.http.duration.WithLabelValues(method, route).Observe(duration.Seconds())
}
