// Package metrics holds the prometheus collectors for the snippet engine.
//
// Collectors are registered on a private registry rather than the global
// default, so tests can build as many Metrics values as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "snippetbox"

// Metrics groups every collector the service and HTTP layers update.
type Metrics struct {
	registry *prometheus.Registry

	Snippets        prometheus.Gauge
	Unsaved         prometheus.Gauge
	Operations      *prometheus.CounterVec
	RefreshImported prometheus.Counter
	RefreshDuration prometheus.Histogram
	Requests        *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Snippets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snippets",
			Help:      "Number of snippets in the in-memory collection.",
		}),
		Unsaved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unsaved_snippets",
			Help:      "Snippets changed in memory whose last write to the store failed.",
		}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Snippet operations by name and result.",
		}, []string{"op", "result"}),
		RefreshImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_imported_total",
			Help:      "Candidates appended to the collection by refreshes.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Time spent fetching and merging the external snippet list.",
			Buckets:   prometheus.DefBuckets,
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
	}

	m.registry.MustRegister(
		m.Snippets,
		m.Unsaved,
		m.Operations,
		m.RefreshImported,
		m.RefreshDuration,
		m.Requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOp counts one operation outcome.
func (m *Metrics) ObserveOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Operations.WithLabelValues(op, result).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
