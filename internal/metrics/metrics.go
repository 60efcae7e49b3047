// Package metrics exposes Prometheus counters for the cache, the rate
// limiter and the generator. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pixel_quest"

// Outcome labels.
const (
	Hit    = "hit"
	Miss   = "miss"
	OK     = "ok"
	Failed = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	cacheLookups     *prometheus.CounterVec
	generations      *prometheus.CounterVec
	generationTime   *prometheus.HistogramVec
	sharedFlights    *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	cacheWriteErrors *prometheus.CounterVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Content cache lookups, partitioned by namespace and result.",
		}, []string{"namespace", "result"}),
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generator calls, partitioned by kind and outcome.",
		}, []string{"kind", "outcome"}),
		generationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Generator call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"kind"}),
		sharedFlights: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_shared_total",
			Help:      "Cache misses that waited on an identical in-flight generation.",
		}, []string{"namespace"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"bucket"}),
		cacheWriteErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_write_errors_total",
			Help:      "Generated content that could not be stored.",
		}, []string{"namespace"}),
	}
}

func (m *Metrics) CacheLookup(ns string, hit bool) {
	if m == nil {
		return
	}
	result := Miss
	if hit {
		result = Hit
	}
	m.cacheLookups.WithLabelValues(ns, result).Inc()
}

func (m *Metrics) Generation(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OK
	if err != nil {
		outcome = Failed
	}
	m.generations.WithLabelValues(kind, outcome).Inc()
	m.generationTime.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) SharedFlight(ns string) {
	if m == nil {
		return
	}
	m.sharedFlights.WithLabelValues(ns).Inc()
}

func (m *Metrics) RateLimited(bucket string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(bucket).Inc()
}

func (m *Metrics) CacheWriteError(ns string) {
	if m == nil {
		return
	}
	m.cacheWriteErrors.WithLabelValues(ns).Inc()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
