package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/localchat/pkg/config"
)

// SessionMetrics tracks relay sessions and their collaborators.
type SessionMetrics struct {
	total             *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	active            *prometheus.GaugeVec
	deltas            *prometheus.CounterVec
	upstreamErrors    *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec
}

// NewSessionMetrics creates and registers session metrics.
func NewSessionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SessionMetrics {
	sm := &SessionMetrics{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_total",
				Help:      "Total number of chat sessions by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "session_duration_seconds",
				Help:      "Duration of chat sessions in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"backend"},
		),

		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_active",
				Help:      "Number of chat sessions currently streaming",
			},
			[]string{"backend"},
		),

		deltas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "deltas_relayed_total",
				Help:      "Total number of token deltas relayed to clients",
			},
			[]string{"backend"},
		),

		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_errors_total",
				Help:      "Total number of failed upstream calls by HTTP status",
			},
			[]string{"backend", "status"},
		),

		persistenceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "persistence_errors_total",
				Help:      "Total number of failed thread store operations",
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		sm.total,
		sm.duration,
		sm.active,
		sm.deltas,
		sm.upstreamErrors,
		sm.persistenceErrors,
	)

	return sm
}
