// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the library.
const (
	// Operation metrics.
	MetricHits    = "filecache_hits_total"
	MetricMisses  = "filecache_misses_total"
	MetricSets    = "filecache_sets_total"
	MetricDeletes = "filecache_deletes_total"
	MetricErrors  = "filecache_errors_total"

	// Garbage collection metrics.
	MetricGCRuns     = "filecache_gc_runs_total"
	MetricGCRemoved  = "filecache_gc_removed_total"
	MetricGCDuration = "filecache_gc_duration_seconds"
	MetricSizeBytes  = "filecache_size_bytes"
	MetricEntries    = "filecache_entries"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
