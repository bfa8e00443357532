// Package metrics provides Prometheus instrumentation for breakers and
// request caches. Breaker and cache gauges are read at scrape time from
// the live registries; transition and rejection counters are fed by the
// observer returned from [Metrics.Observer].
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/outguard/outguard/breaker"
	"github.com/outguard/outguard/requestcache"
)

var _ prometheus.Collector = (*Metrics)(nil)

var (
	descBreakerState = prometheus.NewDesc(
		"outguard_breaker_state",
		"Current breaker state (0=closed, 1=open, 2=half-open)",
		[]string{"service"}, nil,
	)
	descWindowFailures = prometheus.NewDesc(
		"outguard_breaker_window_failures",
		"Failures currently inside the sliding window",
		[]string{"service"}, nil,
	)
	descHalfOpenInFlight = prometheus.NewDesc(
		"outguard_breaker_half_open_in_flight",
		"Probes in flight while half-open",
		[]string{"service"}, nil,
	)
	descCacheHits = prometheus.NewDesc(
		"outguard_cache_hits_total",
		"Total request cache hits, including joined in-flight computations",
		[]string{"cache"}, nil,
	)
	descCacheMisses = prometheus.NewDesc(
		"outguard_cache_misses_total",
		"Total request cache misses",
		[]string{"cache"}, nil,
	)
	descCacheSize = prometheus.NewDesc(
		"outguard_cache_size",
		"Entries resident in the cache store",
		[]string{"cache"}, nil,
	)
	descCacheHitRatio = prometheus.NewDesc(
		"outguard_cache_hit_ratio",
		"Hits as a share of all lookups",
		[]string{"cache"}, nil,
	)
)

// BreakerStats is the read side of a breaker registry.
// *breaker.Manager satisfies it.
type BreakerStats interface {
	Stats() map[string]breaker.Stats
}

// StatsSource is the read side of a request cache. Every
// *requestcache.Cache satisfies it.
type StatsSource interface {
	Stats() requestcache.Stats
}

// CacheStats names a cache for the "cache" metric label.
type CacheStats struct {
	Name   string
	Source StatsSource
}

// Metrics bundles the breaker counters with a scrape-time collector for
// breaker and cache gauges.
type Metrics struct {
	breakers BreakerStats
	caches   []CacheStats

	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

// New registers all collectors on reg. breakers may be nil when only
// cache metrics are wanted; its stats are read at scrape time, so it
// may also be an adapter over a manager that is wired up later.
func New(reg prometheus.Registerer, breakers BreakerStats, caches ...CacheStats) *Metrics {
	m := &Metrics{
		breakers: breakers,
		caches:   caches,
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outguard_breaker_transitions_total",
				Help: "Total breaker state transitions",
			},
			[]string{"service", "to"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outguard_breaker_rejections_total",
				Help: "Total calls rejected by an open breaker",
			},
			[]string{"service"},
		),
	}
	reg.MustRegister(m.transitions, m.rejections, m)
	return m
}

// Observer returns a breaker.Observer feeding the transition and
// rejection counters. Hand it to breaker.NewManager via WithObserver.
func (m *Metrics) Observer() breaker.Observer { return observer{m} }

type observer struct{ m *Metrics }

func (o observer) OnStateChange(service string, _, to breaker.State) {
	o.m.transitions.WithLabelValues(service, to.String()).Inc()
}

func (o observer) OnRejection(service string) {
	o.m.rejections.WithLabelValues(service).Inc()
}

// Describe implements prometheus.Collector for the scrape-time gauges.
// The counter vecs describe themselves.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- descBreakerState
	ch <- descWindowFailures
	ch <- descHalfOpenInFlight
	ch <- descCacheHits
	ch <- descCacheMisses
	ch <- descCacheSize
	ch <- descCacheHitRatio
}

// Collect implements prometheus.Collector by snapshotting every breaker
// and cache at scrape time.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	if m.breakers != nil {
		for service, st := range m.breakers.Stats() {
			ch <- prometheus.MustNewConstMetric(descBreakerState, prometheus.GaugeValue, float64(st.State), service)
			ch <- prometheus.MustNewConstMetric(descWindowFailures, prometheus.GaugeValue, float64(st.WindowFailures), service)
			ch <- prometheus.MustNewConstMetric(descHalfOpenInFlight, prometheus.GaugeValue, float64(st.HalfOpenInFlight), service)
		}
	}
	for _, c := range m.caches {
		if c.Source == nil {
			continue
		}
		s := c.Source.Stats()
		ch <- prometheus.MustNewConstMetric(descCacheHits, prometheus.CounterValue, float64(s.Hits), c.Name)
		ch <- prometheus.MustNewConstMetric(descCacheMisses, prometheus.CounterValue, float64(s.Misses), c.Name)
		ch <- prometheus.MustNewConstMetric(descCacheSize, prometheus.GaugeValue, float64(s.Size), c.Name)
		ch <- prometheus.MustNewConstMetric(descCacheHitRatio, prometheus.GaugeValue, s.HitRate, c.Name)
	}
}

// Handler returns an http.Handler that serves reg in Prometheus
// exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
