// Package otelstats provides an OpenTelemetry-based stats collector.
package otelstats

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/discochess/filecache/internal/stats"
)

// Collector implements stats.Collector on top of an OpenTelemetry meter.
// Instrument creation failures are swallowed; the affected metric is dropped.
type Collector struct {
	meter metric.Meter
	attrs metric.MeasurementOption

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Int64Gauge
	histograms map[string]metric.Float64Histogram
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a collector recording through meter. The attributes are
// attached to every measurement.
func New(meter metric.Meter, attrs ...attribute.KeyValue) *Collector {
	return &Collector{
		meter:      meter,
		attrs:      metric.WithAttributes(attrs...),
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Int64Gauge),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// IncCounter adds delta to a counter.
func (c *Collector) IncCounter(name string, delta int64) {
	c.mu.Lock()
	counter, ok := c.counters[name]
	if !ok {
		var err error
		if counter, err = c.meter.Int64Counter(name); err != nil {
			c.mu.Unlock()
			return
		}
		c.counters[name] = counter
	}
	c.mu.Unlock()

	counter.Add(context.Background(), delta, c.attrs)
}

// SetGauge records the current value of a gauge.
func (c *Collector) SetGauge(name string, value int64) {
	c.mu.Lock()
	gauge, ok := c.gauges[name]
	if !ok {
		var err error
		if gauge, err = c.meter.Int64Gauge(name); err != nil {
			c.mu.Unlock()
			return
		}
		c.gauges[name] = gauge
	}
	c.mu.Unlock()

	gauge.Record(context.Background(), value, c.attrs)
}

// ObserveHistogram records a histogram sample.
func (c *Collector) ObserveHistogram(name string, value float64) {
	c.mu.Lock()
	histogram, ok := c.histograms[name]
	if !ok {
		var err error
		opts := []metric.Float64HistogramOption{}
		if name == stats.MetricGCDuration {
			opts = append(opts, metric.WithUnit("s"))
		}
		if histogram, err = c.meter.Float64Histogram(name, opts...); err != nil {
			c.mu.Unlock()
			return
		}
		c.histograms[name] = histogram
	}
	c.mu.Unlock()

	histogram.Record(context.Background(), value, c.attrs)
}
