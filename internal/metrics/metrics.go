// Package metrics instruments the store graph with Prometheus counters
// and a health/readiness check over every configured upstream plus the
// cache root.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aliharirian/symcache/internal/diagnostics"
)

// Registry groups the counters symcache exposes. It is safe to share a
// single Registry across every store in the graph.
type Registry struct {
	Requests     *prometheus.CounterVec
	CircuitTrips *prometheus.CounterVec
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
}

// NewRegistry builds and registers symcache's metrics against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "symcache",
			Name:      "requests_total",
			Help:      "Store queries by store name and outcome.",
		}, []string{"store", "outcome"}),
		CircuitTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "symcache",
			Name:      "circuit_trips_total",
			Help:      "Circuit breaker trips by upstream store name.",
		}, []string{"store"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "symcache",
			Name:      "cache_hits_total",
			Help:      "Cache queries served from disk.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "symcache",
			Name:      "cache_misses_total",
			Help:      "Cache queries that delegated upstream.",
		}),
	}
	reg.MustRegister(m.Requests, m.CircuitTrips, m.CacheHits, m.CacheMisses)
	return m
}

// ObserveOutcome records one query's outcome against storeName.
func (m *Registry) ObserveOutcome(storeName string, outcome diagnostics.Outcome) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(storeName, outcome.String()).Inc()
	if outcome == diagnostics.Unreachable {
		m.CircuitTrips.WithLabelValues(storeName).Inc()
	}
}

// ObserveCacheHit records one file cache query served directly from
// disk, with no upstream delegation.
func (m *Registry) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// ObserveCacheMiss records one file cache query that delegated
// upstream because the file was not already on disk.
func (m *Registry) ObserveCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}
