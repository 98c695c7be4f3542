package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Registration outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	Registrations   *prometheus.CounterVec
	RankQueries     *prometheus.CounterVec
	IndexedPlayers  prometheus.Gauge
	RequestDuration *prometheus.HistogramVec
}

// New builds collectors on a private registry so several instances can live
// in one process.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_registrations_total",
				Help: "Player registrations by outcome",
			},
			[]string{"outcome"},
		),
		RankQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_queries_total",
				Help: "Leaderboard queries by rank strategy used for my_rank",
			},
			[]string{"strategy"},
		),
		IndexedPlayers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ranking_indexed_players",
				Help: "Players held by the in-memory rank index",
			},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
	}

	m.registry.MustRegister(
		m.Registrations,
		m.RankQueries,
		m.IndexedPlayers,
		m.RequestDuration,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var Module = fx.Provide(New)
