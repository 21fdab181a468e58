// Package metrics exposes scan and cache counters in Prometheus format.
// A nil *Collector is valid and records nothing, so components can take one
// optionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "secboard"

// Scan outcomes used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
	OutcomeCanceled  = "canceled"
)

// Cache operation results used as the "result" label.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheOK    = "ok"
	CacheError = "error"
)

type Collector struct {
	registry *prometheus.Registry

	scansStarted  prometheus.Counter
	scansFinished *prometheus.CounterVec
	polls         prometheus.Counter
	scanDuration  prometheus.Histogram
	cacheOps      *prometheus.CounterVec
	activeScans   prometheus.Gauge
}

// New registers the secboard metrics on registry. A nil registry gets a
// fresh one with the Go and process collectors.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	c := &Collector{
		registry: registry,
		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_started_total",
			Help:      "Scans accepted by the remote service.",
		}),
		scansFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_finished_total",
			Help:      "Scan sessions that ended, by outcome.",
		}, []string{"outcome"}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_polls_total",
			Help:      "Status polls sent to the remote service.",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Time from scan start to its end.",
			Buckets:   []float64{1, 3, 6, 10, 20, 30, 45, 60, 90},
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Local cache operations, by operation and result.",
		}, []string{"op", "result"}),
		activeScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_scans",
			Help:      "Scan sessions currently polling.",
		}),
	}
	registry.MustRegister(c.scansStarted, c.scansFinished, c.polls, c.scanDuration, c.cacheOps, c.activeScans)
	return c
}

func (c *Collector) ScanStarted() {
	if c == nil {
		return
	}
	c.scansStarted.Inc()
	c.activeScans.Inc()
}

func (c *Collector) ScanFinished(outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.scansFinished.WithLabelValues(outcome).Inc()
	c.scanDuration.Observe(took.Seconds())
	c.activeScans.Dec()
}

func (c *Collector) Poll() {
	if c == nil {
		return
	}
	c.polls.Inc()
}

func (c *Collector) CacheOp(op, result string) {
	if c == nil {
		return
	}
	c.cacheOps.WithLabelValues(op, result).Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
