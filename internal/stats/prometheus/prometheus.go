// Package prometheus provides a Prometheus-based stats collector.
package prometheus

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/discochess/filecache/internal/stats"
)

// help holds descriptions for the metrics the cache emits. Unknown names
// fall back to the metric name itself.
var help = map[string]string{
	stats.MetricHits:       "Cache reads that returned a live entry.",
	stats.MetricMisses:     "Cache reads that found no live entry.",
	stats.MetricSets:       "Entries written.",
	stats.MetricDeletes:    "Entries removed by explicit deletes.",
	stats.MetricErrors:     "Operation failures of any kind.",
	stats.MetricGCRuns:     "Garbage collection sweeps.",
	stats.MetricGCRemoved:  "Entries removed by garbage collection.",
	stats.MetricGCDuration: "Garbage collection sweep duration in seconds.",
	stats.MetricSizeBytes:  "Raw payload bytes held after the last sweep.",
	stats.MetricEntries:    "Entries held after the last sweep.",
}

// gcBuckets covers sweeps from a few milliseconds up to minutes.
var gcBuckets = prometheus.ExponentialBuckets(0.005, 4, 8)

// Collector implements stats.Collector using Prometheus metrics.
type Collector struct {
	registry prometheus.Registerer
	labels   prometheus.Labels

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a new Prometheus collector.
// If registry is nil, prometheus.DefaultRegisterer is used. The labels are
// attached to every metric as constant labels, so several caches can share
// one registry.
func New(registry prometheus.Registerer, labels prometheus.Labels) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Collector{
		registry:   registry,
		labels:     labels,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name string, delta int64) {
	counter := getOrCreate(c, c.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Name:        name,
			Help:        helpFor(name),
			ConstLabels: c.labels,
		})
	})
	counter.Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name string, value int64) {
	gauge := getOrCreate(c, c.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        name,
			Help:        helpFor(name),
			ConstLabels: c.labels,
		})
	})
	gauge.Set(float64(value))
}

// ObserveHistogram records a value in a histogram.
func (c *Collector) ObserveHistogram(name string, value float64) {
	histogram := getOrCreate(c, c.histograms, name, func() prometheus.Histogram {
		buckets := prometheus.DefBuckets
		if name == stats.MetricGCDuration {
			buckets = gcBuckets
		}
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        name,
			Help:        helpFor(name),
			ConstLabels: c.labels,
			Buckets:     buckets,
		})
	})
	histogram.Observe(value)
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// getOrCreate returns the metric registered under name, creating and
// registering it on first use. If an equal metric is already registered
// elsewhere, that one is reused.
func getOrCreate[M prometheus.Collector](c *Collector, metrics map[string]M, name string, create func() M) M {
	c.mu.RLock()
	m, ok := metrics[name]
	c.mu.RUnlock()
	if ok {
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok = metrics[name]; ok {
		return m
	}

	m = create()
	if err := c.registry.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				m = existing
			}
		}
		// Otherwise keep the unregistered metric; it still counts.
	}
	metrics[name] = m
	return m
}
