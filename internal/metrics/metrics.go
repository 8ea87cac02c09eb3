// Package metrics provides Prometheus metrics for the DevStory engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	GenerationsTotal    *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec
	ParseFallbacksTotal prometheus.Counter
	RewardsTotal        *prometheus.CounterVec
	SubscriptionsActive prometheus.Gauge
	ErrorsTotal         *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devstory_generations_total",
				Help: "Total generation pipelines by terminal status and scope kind.",
			},
			[]string{"status", "scope"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devstory_generation_duration_seconds",
				Help:    "End-to-end generation pipeline duration by terminal status.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"status"},
		),
		ParseFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "devstory_parse_fallbacks_total",
				Help: "Responses that needed the fence-stripping retry before decoding.",
			},
		),
		RewardsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devstory_rewards_total",
				Help: "XP award dispatches by result.",
			},
			[]string{"result"},
		),
		SubscriptionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "devstory_subscriptions_active",
				Help: "Currently active realtime snapshot subscriptions.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devstory_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.GenerationsTotal)
	reg.MustRegister(m.GenerationDuration)
	reg.MustRegister(m.ParseFallbacksTotal)
	reg.MustRegister(m.RewardsTotal)
	reg.MustRegister(m.SubscriptionsActive)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordGeneration increments the pipeline counter.
func (m *Metrics) RecordGeneration(status, scope string) {
	m.GenerationsTotal.WithLabelValues(status, scope).Inc()
}

// ObserveGeneration records one pipeline's duration.
func (m *Metrics) ObserveGeneration(status string, seconds float64) {
	m.GenerationDuration.WithLabelValues(status).Observe(seconds)
}

// RecordReward increments the award dispatch counter.
func (m *Metrics) RecordReward(result string) {
	m.RewardsTotal.WithLabelValues(result).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
