// Package metrics exposes Prometheus collectors for the control pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the application collectors with their registry.
type Metrics struct {
	registry *prometheus.Registry

	// DispatchTotal counts dispatch attempts by origin and outcome.
	DispatchTotal *prometheus.CounterVec
	// DispatchDuration observes end-to-end dispatch latency in seconds.
	DispatchDuration prometheus.Histogram
	// SchedulerTicks counts scheduler polls.
	SchedulerTicks prometheus.Counter
	// RemindersProcessed counts executed reminders by disposition.
	RemindersProcessed *prometheus.CounterVec
	// TriggerMatches counts messages that matched a trigger.
	TriggerMatches prometheus.Counter
	// CachedCommunities reports the warm trigger-cache size.
	CachedCommunities prometheus.Gauge
	// CachedRegexes reports the compiled-pattern cache size.
	CachedRegexes prometheus.Gauge
}

// New builds a registry with process/Go collectors plus the app collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsegate_dispatch_total",
			Help: "Dispatch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulsegate_dispatch_duration_seconds",
			Help:    "End-to-end dispatch latency.",
			Buckets: prometheus.DefBuckets,
		}),
		SchedulerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsegate_scheduler_ticks_total",
			Help: "Scheduler poll iterations.",
		}),
		RemindersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsegate_reminders_processed_total",
			Help: "Reminders handled by the scheduler, by disposition.",
		}, []string{"disposition"}),
		TriggerMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsegate_trigger_matches_total",
			Help: "Messages that matched an enabled trigger.",
		}),
		CachedCommunities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsegate_trigger_cache_communities",
			Help: "Communities with a warm trigger cache.",
		}),
		CachedRegexes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsegate_trigger_cache_regexes",
			Help: "Compiled regexes held in the LRU cache.",
		}),
	}
	reg.MustRegister(
		m.DispatchTotal,
		m.DispatchDuration,
		m.SchedulerTicks,
		m.RemindersProcessed,
		m.TriggerMatches,
		m.CachedCommunities,
		m.CachedRegexes,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
