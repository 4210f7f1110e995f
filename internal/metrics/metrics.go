// Package metrics exposes Prometheus collectors for cache lookups and upstream
// fetches.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artipie/artipie/internal/asto/cache"
)

// Metrics groups all collectors registered by the proxy.
type Metrics struct {
	registry *prometheus.Registry

	lookups  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	upstream *prometheus.CounterVec
}

// New creates a fresh registry with process and Go runtime collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artipie_cache_lookups_total",
				Help: "Cache lookups by repository and outcome",
			},
			[]string{"repo", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "artipie_cache_load_seconds",
				Help:    "Time spent answering a cache lookup",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"repo", "outcome"},
		),
		upstream: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artipie_upstream_requests_total",
				Help: "Requests sent to upstream registries by status class",
			},
			[]string{"repo", "status"},
		),
	}
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CacheObserver returns an observer recording every Load of repo.
func (m *Metrics) CacheObserver(repo string) cache.Observer {
	return cache.ObserverFunc(func(event cache.Event) {
		outcome := string(event.Outcome)
		m.lookups.WithLabelValues(repo, outcome).Inc()
		m.duration.WithLabelValues(repo, outcome).Observe(event.Duration.Seconds())
	})
}

// ObserveUpstream counts one upstream round trip. status is the HTTP status
// class ("2xx", "4xx", ...) or "error" for transport failures.
func (m *Metrics) ObserveUpstream(repo, status string) {
	m.upstream.WithLabelValues(repo, status).Inc()
}

// StatusClass maps an HTTP status code to its label value.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "error"
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
