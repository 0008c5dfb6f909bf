package otelstats

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/discochess/filecache/internal/stats"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestCollector_RecordsMeasurements(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	c := New(provider.Meter("filecache"), attribute.String("namespace", "ns1"))

	c.IncCounter(stats.MetricHits, 2)
	c.IncCounter(stats.MetricHits, 3)
	c.SetGauge(stats.MetricSizeBytes, 4096)
	c.ObserveHistogram(stats.MetricGCDuration, 0.5)

	metrics := collect(t, reader)

	hits, ok := metrics[stats.MetricHits].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s missing or not an int64 sum", stats.MetricHits)
	}
	if len(hits.DataPoints) != 1 || hits.DataPoints[0].Value != 5 {
		t.Errorf("hits = %+v, want a single point of 5", hits.DataPoints)
	}
	if v, ok := hits.DataPoints[0].Attributes.Value("namespace"); !ok || v.AsString() != "ns1" {
		t.Errorf("namespace attribute = %v, want ns1", v)
	}

	size, ok := metrics[stats.MetricSizeBytes].Data.(metricdata.Gauge[int64])
	if !ok || len(size.DataPoints) != 1 || size.DataPoints[0].Value != 4096 {
		t.Errorf("size gauge = %+v, want 4096", metrics[stats.MetricSizeBytes].Data)
	}

	gc, ok := metrics[stats.MetricGCDuration].Data.(metricdata.Histogram[float64])
	if !ok || len(gc.DataPoints) != 1 || gc.DataPoints[0].Count != 1 {
		t.Errorf("gc histogram = %+v, want one sample", metrics[stats.MetricGCDuration].Data)
	}
	if metrics[stats.MetricGCDuration].Unit != "s" {
		t.Errorf("gc histogram unit = %q, want %q", metrics[stats.MetricGCDuration].Unit, "s")
	}
}
