// Package observability records cache, fetch and HTTP metrics for a CLI session.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slides"

// Cache lookup results.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// Metrics is a per-process Prometheus registry. It satisfies the recorder
// interfaces of the session and api packages.
type Metrics struct {
	registry *prometheus.Registry
	start    time.Time

	cacheLookups  *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	requests      *prometheus.CounterVec
	reqDuration   prometheus.Histogram
}

// NewMetrics creates and registers all collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		start:    time.Now(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "cache_lookups_total",
			Help:      "Session cache lookups by cache line and result.",
		}, []string{"line", "result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "fetches_total",
			Help:      "Remote fetches issued to refill a cache line.",
		}, []string{"line", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of cache line refills.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"line"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		reqDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(m.cacheLookups, m.fetches, m.fetchDuration, m.requests, m.reqDuration)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CacheLookup counts a freshness check on a cache line.
func (m *Metrics) CacheLookup(line string, hit bool) {
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	m.cacheLookups.WithLabelValues(line, result).Inc()
}

// FetchDone records a settled refill.
func (m *Metrics) FetchDone(line string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(line, outcome).Inc()
	m.fetchDuration.WithLabelValues(line).Observe(d.Seconds())
}

// RequestDone records an HTTP round trip. status is 0 for transport failures.
func (m *Metrics) RequestDone(method string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, statusLabel(status)).Inc()
	m.reqDuration.Observe(d.Seconds())
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
