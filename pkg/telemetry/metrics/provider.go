// Package metrics exports provider observations to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statusValues maps status names to stable gauge values.
var statusValues = map[string]float64{
	"healthy":     0,
	"degraded":    1,
	"unhealthy":   2,
	"maintenance": 3,
}

// ProviderMetrics holds the Prometheus collectors for provider traffic and
// health. It implements the health monitor's Recorder interface.
type ProviderMetrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	healthScore *prometheus.GaugeVec
	status      *prometheus.GaugeVec
}

// New creates the collectors under the given namespace with a dedicated
// registry.
func New(namespace string) *ProviderMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &ProviderMetrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total provider invocations, including retries.",
		}, []string{"provider"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Total failed provider invocations.",
		}, []string{"provider"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Provider invocation latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		healthScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_health_score",
			Help:      "Current provider health score (0-100).",
		}, []string{"provider"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_status",
			Help:      "Provider status (0 healthy, 1 degraded, 2 unhealthy, 3 maintenance).",
		}, []string{"provider"}),
	}

	registry.MustRegister(m.requests, m.failures, m.latency, m.healthScore, m.status)
	return m
}

// ObserveRequest records one provider invocation.
func (m *ProviderMetrics) ObserveRequest(provider string, success bool, elapsed time.Duration) {
	m.requests.WithLabelValues(provider).Inc()
	if !success {
		m.failures.WithLabelValues(provider).Inc()
	}
	m.latency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// SetHealthScore updates the provider's health score gauge.
func (m *ProviderMetrics) SetHealthScore(provider string, score float64) {
	m.healthScore.WithLabelValues(provider).Set(score)
}

// SetStatus updates the provider's status gauge.
func (m *ProviderMetrics) SetStatus(provider, status string) {
	if value, ok := statusValues[status]; ok {
		m.status.WithLabelValues(provider).Set(value)
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *ProviderMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
