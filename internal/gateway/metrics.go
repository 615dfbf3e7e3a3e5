package gateway

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casahub/concierge/internal/conversation"
)

// Metrics holds the Prometheus instruments for the gateway. Each Gateway
// carries its own registry so tests can instantiate in isolation.
type Metrics struct {
	registry    *prometheus.Registry
	turnsTotal  *prometheus.CounterVec
	turnSeconds prometheus.Histogram
}

// NewMetrics builds and registers the gateway instruments. The active
// session gauge reads the store directly at scrape time.
func NewMetrics(sessions *conversation.Store) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Name:      "turns_total",
			Help:      "Conversation turns processed, by outcome.",
		}, []string{"outcome"}),
		turnSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "concierge",
			Name:      "turn_duration_seconds",
			Help:      "Latency of one conversation turn, request to settled history.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.turnsTotal, m.turnSeconds)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "concierge",
		Name:      "active_sessions",
		Help:      "Sessions currently held in memory.",
	}, func() float64 {
		return float64(sessions.Len())
	}))

	return m
}

// RecordTurn records one completed turn.
// outcome is "text", "tool", or "error".
func (m *Metrics) RecordTurn(outcome string, elapsed time.Duration) {
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnSeconds.Observe(elapsed.Seconds())
}

// Handler serves the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
