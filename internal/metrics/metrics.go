package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the exporter's own Prometheus metrics.
type Metrics struct {
	TargetUp           *prometheus.GaugeVec
	TargetSessions     *prometheus.GaugeVec
	ScrapeDuration     *prometheus.GaugeVec
	IndexEntries       prometheus.Gauge
	IndexLastRefresh   prometheus.Gauge
	IndexRefreshErrors prometheus.Counter
	JoinMisses         *prometheus.CounterVec
	BuildInfo          *prometheus.GaugeVec
}

// NewMetrics initializes the metrics and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TargetUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:      "target_up",
				Namespace: namespace,
				Help:      "Whether the last read of the admin socket succeeded.",
			},
			[]string{"target"},
		),
		TargetSessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:      "target_sessions",
				Namespace: namespace,
				Help:      "Number of client sessions reported by the admin socket on the last scrape.",
			},
			[]string{"target"},
		),
		ScrapeDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:      "scrape_duration_seconds",
				Namespace: namespace,
				Help:      "Time spent reading and reconciling one admin socket.",
			},
			[]string{"target"},
		),
		IndexEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:      "index_entries",
				Namespace: namespace,
				Help:      "Number of subvolume paths in the published volume index.",
			},
		),
		IndexLastRefresh: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:      "index_last_refresh_timestamp_seconds",
				Namespace: namespace,
				Help:      "Unix time of the last successful volume index refresh.",
			},
		),
		IndexRefreshErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:      "index_refresh_errors_total",
				Namespace: namespace,
				Help:      "Number of volume index refresh cycles that failed.",
			},
		),
		JoinMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:      "join_misses_total",
				Namespace: namespace,
				Help:      "Sessions whose subvolume path had no entry in the volume index.",
			},
			[]string{"target"},
		),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:      "build_info",
				Namespace: namespace,
				Help:      "Build information, value is always 1.",
			},
			[]string{"version", "commit", "go_version"},
		),
	}

	reg.MustRegister(
		m.TargetUp,
		m.TargetSessions,
		m.ScrapeDuration,
		m.IndexEntries,
		m.IndexLastRefresh,
		m.IndexRefreshErrors,
		m.JoinMisses,
		m.BuildInfo,
	)

	return m
}
