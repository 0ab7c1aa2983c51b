// Package metrics exposes Prometheus instrumentation for dispatch activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sol-I/stark-ai/internal/dispatch"
)

// Metrics holds the collectors on a private registry so tests can create
// isolated instances without colliding on the global default.
type Metrics struct {
	registry *prometheus.Registry

	attempts     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	availability *prometheus.GaugeVec
	exhausted    prometheus.Counter
	tokens       *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stark_ai",
			Name:      "provider_attempts_total",
			Help:      "Provider attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stark_ai",
			Name:      "provider_attempt_duration_seconds",
			Help:      "Provider attempt latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		availability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stark_ai",
			Name:      "provider_available",
			Help:      "1 when the provider is outside its cool-down window.",
		}, []string{"provider"}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stark_ai",
			Name:      "dispatch_exhausted_total",
			Help:      "Dispatches where every candidate provider failed.",
		}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stark_ai",
			Name:      "tokens_total",
			Help:      "Estimated tokens by provider and direction.",
		}, []string{"provider", "direction"}),
	}

	m.registry.MustRegister(m.attempts, m.latency, m.availability, m.exhausted, m.tokens)
	return m
}

// ObserveAttempt implements dispatch.AttemptObserver.
func (m *Metrics) ObserveAttempt(rec dispatch.AttemptRecord) {
	outcome := "success"
	if !rec.Success {
		outcome = rec.ErrorKind
		if outcome == "" {
			outcome = "unknown"
		}
	}
	m.attempts.WithLabelValues(rec.Provider, outcome).Inc()
	m.latency.WithLabelValues(rec.Provider).Observe(rec.Duration.Seconds())

	if rec.PromptTokens > 0 {
		m.tokens.WithLabelValues(rec.Provider, "prompt").Add(float64(rec.PromptTokens))
	}
	if rec.CompletionTokens > 0 {
		m.tokens.WithLabelValues(rec.Provider, "completion").Add(float64(rec.CompletionTokens))
	}
}

// SetAvailability publishes whether a provider is currently dispatchable.
func (m *Metrics) SetAvailability(provider string, available bool) {
	v := 0.0
	if available {
		v = 1.0
	}
	m.availability.WithLabelValues(provider).Set(v)
}

// ObserveExhausted implements dispatch.ExhaustionObserver, counting
// dispatches where all providers failed.
func (m *Metrics) ObserveExhausted() {
	m.exhausted.Inc()
}

// ObserveAvailability implements dispatch.AvailabilityObserver, so the
// gauge follows live-traffic health transitions between probe sweeps.
func (m *Metrics) ObserveAvailability(provider string, available bool) {
	m.SetAvailability(provider, available)
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
