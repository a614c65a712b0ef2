package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one engine instance
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal       *prometheus.CounterVec
	PolicyRunsTotal   *prometheus.CounterVec
	PolicyErrorsTotal *prometheus.CounterVec
	ActionsTotal      *prometheus.CounterVec
	SpamWarningsTotal prometheus.Counter
	SpamBlocksTotal   prometheus.Counter
	TrustBlocksTotal  prometheus.Counter
	CacheEvictions    *prometheus.CounterVec
	VaultCaptures     prometheus.Counter
	VaultSwept        prometheus.Counter
	VaultEntries      prometheus.Gauge
	ChatbotLatency    prometheus.Histogram
}

// New creates a metrics set on its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatguard_events_total",
			Help: "Inbound chat events by kind",
		}, []string{"kind"}),
		PolicyRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatguard_policy_runs_total",
			Help: "Policy executions by policy",
		}, []string{"policy"}),
		PolicyErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatguard_policy_errors_total",
			Help: "Policy failures by policy",
		}, []string{"policy"}),
		ActionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatguard_transport_actions_total",
			Help: "Outbound transport actions by action and result",
		}, []string{"action", "result"}),
		SpamWarningsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "chatguard_spam_warnings_total",
			Help: "Spam warnings sent",
		}),
		SpamBlocksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "chatguard_spam_blocks_total",
			Help: "Senders blocked for spam",
		}),
		TrustBlocksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "chatguard_trust_blocks_total",
			Help: "Senders blocked after trust fell below threshold",
		}),
		CacheEvictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatguard_cache_evictions_total",
			Help: "Message cache evictions by cache",
		}, []string{"cache"}),
		VaultCaptures: f.NewCounter(prometheus.CounterOpts{
			Name: "chatguard_vault_captures_total",
			Help: "View-once media captured",
		}),
		VaultSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "chatguard_vault_swept_total",
			Help: "Captured media removed by the sweeper",
		}),
		VaultEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatguard_vault_entries",
			Help: "Captured media currently held",
		}),
		ChatbotLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatguard_chatbot_latency_seconds",
			Help:    "Chatbot responder latency",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15},
		}),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Result labels an action outcome
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
