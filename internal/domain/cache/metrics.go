package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the cache's Prometheus collectors on a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Refreshes     *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	HealthChecks  *prometheus.CounterVec
	Entries       *prometheus.GaugeVec
}

// NewMetrics creates the cache collectors and registers them on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flux9s",
			Subsystem: "plugin_cache",
			Name:      "refreshes_total",
			Help:      "Plugin data refreshes by result.",
		}, []string{"plugin", "result"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flux9s",
			Subsystem: "plugin_cache",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of plugin data fetches in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"plugin"}),
		HealthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flux9s",
			Subsystem: "plugin_cache",
			Name:      "health_checks_total",
			Help:      "Plugin connector health checks by result.",
		}, []string{"plugin", "result"}),
		Entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flux9s",
			Subsystem: "plugin_cache",
			Name:      "entries",
			Help:      "Cached plugin entries by freshness.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(m.Refreshes, m.FetchDuration, m.HealthChecks, m.Entries)
	return m
}

// Registry returns the registry holding the cache collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeRefresh(plugin string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(plugin, result(err)).Inc()
	m.FetchDuration.WithLabelValues(plugin).Observe(d.Seconds())
}

func (m *Metrics) observeHealth(plugin string, err error) {
	if m == nil {
		return
	}
	m.HealthChecks.WithLabelValues(plugin, result(err)).Inc()
}

func (m *Metrics) observeStats(s Stats) {
	if m == nil {
		return
	}
	m.Entries.WithLabelValues("fresh").Set(float64(s.FreshEntries))
	m.Entries.WithLabelValues("expired").Set(float64(s.ExpiredEntries))
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
