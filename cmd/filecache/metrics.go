package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/discochess/filecache/internal/stats"
	"github.com/discochess/filecache/internal/stats/otelstats"
	promstats "github.com/discochess/filecache/internal/stats/prometheus"
)

const meterName = "github.com/discochess/filecache"

var (
	metricsAddr  string
	otelStdout   bool
	otelInterval time.Duration
)

func addMetricsFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&otelStdout, "otel-stdout", false, "export OpenTelemetry metrics to stderr")
	cmd.Flags().DurationVar(&otelInterval, "otel-interval", time.Minute, "OpenTelemetry export interval")
}

// setupMetrics starts the exporters selected by flags. The returned
// collector is nil when none is selected. Metrics are only recorded when
// enable_statistics is set.
func setupMetrics(logger *zap.Logger) (stats.Collector, func(context.Context) error, error) {
	var (
		collectors []stats.Collector
		shutdowns  []func(context.Context) error
	)
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdowns {
			err = multierr.Append(err, fn(ctx))
		}
		return err
	}

	if metricsAddr != "" {
		c, stop, err := startPrometheus(logger, metricsAddr)
		if err != nil {
			return nil, nil, err
		}
		collectors = append(collectors, c)
		shutdowns = append(shutdowns, stop)
	}

	if otelStdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			shutdown(context.Background())
			return nil, nil, fmt.Errorf("creating stdout exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(otelInterval))),
		)
		collectors = append(collectors, otelstats.New(mp.Meter(meterName)))
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	if len(collectors) == 0 {
		return nil, shutdown, nil
	}
	return stats.NewMulti(collectors...), shutdown, nil
}

func startPrometheus(logger *zap.Logger, addr string) (stats.Collector, func(context.Context) error, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return promstats.New(reg, nil), srv.Shutdown, nil
}
