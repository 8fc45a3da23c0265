package fielddata

import (
	"github.com/prometheus/client_golang/prometheus"
)

// cacheMetrics holds Prometheus metrics for the field cache.
type cacheMetrics struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	commits    prometheus.Counter
	evictions  prometheus.Counter
	loaded     prometheus.Gauge
	active     prometheus.Gauge
	earlyReads prometheus.Counter
}

func newCacheMetrics(component string) *cacheMetrics {
	labels := prometheus.Labels{"component": component}
	return &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "blockrt",
			Subsystem:   "fielddata",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Field reads answered from a loaded definition",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "blockrt",
			Subsystem:   "fielddata",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Field reads that fell back to the schema default",
		}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "blockrt",
			Subsystem:   "fielddata",
			Name:        "commits_total",
			ConstLabels: labels,
			Help:        "Parsed definitions committed to the cache",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "blockrt",
			Subsystem:   "fielddata",
			Name:        "evictions_total",
			ConstLabels: labels,
			Help:        "Loaded definitions evicted",
		}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "blockrt",
			Subsystem:   "fielddata",
			Name:        "loaded_definitions",
			ConstLabels: labels,
			Help:        "Current number of loaded definitions",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "blockrt",
			Subsystem:   "fielddata",
			Name:        "active_blocks",
			ConstLabels: labels,
			Help:        "Current number of tracked block instances",
		}),
		earlyReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "blockrt",
			Subsystem:   "fielddata",
			Name:        "reads_before_load_total",
			ConstLabels: labels,
			Help:        "Field reads issued before the block's definition was loaded",
		}),
	}
}

func (m *cacheMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.hits, m.misses, m.commits, m.evictions, m.loaded, m.active, m.earlyReads}
}

func (m *cacheMetrics) updateSizes(loaded, active int) {
	m.loaded.Set(float64(loaded))
	m.active.Set(float64(active))
}
