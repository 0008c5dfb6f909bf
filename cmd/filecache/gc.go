package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/filecache"
	"github.com/discochess/filecache/internal/configfile"
	"github.com/discochess/filecache/internal/stats"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove expired entries and enforce the size limit",
	Long: `Run a garbage collection sweep over the cache directory.

A sweep removes expired and corrupt entries, evicts the oldest live
entries until max_cache_size is honored, and reaps abandoned temporary
and lock files.

With --watch the sweep repeats every --interval until interrupted, and
the configuration file is reloaded whenever it changes.

Examples:
  # One sweep
  filecache gc --config ./filecache.yaml

  # Sweep every five minutes and serve Prometheus metrics
  filecache gc --watch --interval 5m --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

var (
	gcWatch    bool
	gcInterval time.Duration
)

func init() {
	gcCmd.Flags().BoolVar(&gcWatch, "watch", false, "keep sweeping until interrupted")
	gcCmd.Flags().DurationVar(&gcInterval, "interval", 10*time.Minute, "time between sweeps with --watch")
	addMetricsFlags(gcCmd)
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	if gcWatch && gcInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	collector, shutdown, err := setupMetrics(logger)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	cache, err := openCache(logger, collector)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if !gcWatch {
		res, err := cache.GC(ctx)
		if err != nil {
			return fmt.Errorf("gc: %w", err)
		}
		printGCResult(cmd.OutOrStdout(), res)
		return nil
	}

	var current atomic.Pointer[filecache.Cache]
	current.Store(cache)
	if configPath != "" {
		if _, err := configfile.Watch(configPath, logger, reopen(&current, logger, collector)); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		res, err := current.Load().GC(ctx)
		if err != nil {
			logger.Warn("gc sweep failed", zap.Error(err))
		} else {
			logger.Info("gc sweep finished",
				zap.Int("scanned", res.Scanned),
				zap.Int("removed", res.Removed()),
				zap.Int("remaining", res.RemainingEntries),
				zap.Int64("remaining_bytes", res.RemainingBytes),
				zap.Duration("duration", res.Duration),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// reopen returns a config change handler that swaps in a cache built from
// the new configuration. A configuration the cache rejects is logged and
// the running cache is kept.
func reopen(current *atomic.Pointer[filecache.Cache], logger *zap.Logger, collector stats.Collector) func(filecache.Config) {
	return func(cfg filecache.Config) {
		cfg, err := applyFlags(cfg)
		if err != nil {
			logger.Warn("keeping previous cache", zap.Error(err))
			return
		}
		cache, err := newCache(cfg, logger, collector)
		if err != nil {
			logger.Warn("keeping previous cache", zap.Error(err))
			return
		}
		current.Store(cache)
		logger.Info("cache reopened", zap.String("dir", cache.Dir()))
	}
}

func printGCResult(w io.Writer, res filecache.GCResult) {
	fmt.Fprintf(w, "Scanned:      %d\n", res.Scanned)
	fmt.Fprintf(w, "Expired:      %d\n", res.Expired)
	fmt.Fprintf(w, "Evicted:      %d\n", res.Evicted)
	fmt.Fprintf(w, "Corrupt:      %d\n", res.Corrupt)
	fmt.Fprintf(w, "Stale temps:  %d\n", res.StaleTemps)
	fmt.Fprintf(w, "Orphan locks: %d\n", res.OrphanLocks)
	fmt.Fprintf(w, "Remaining:    %d entries, %s\n", res.RemainingEntries, formatBytes(res.RemainingBytes))
	fmt.Fprintf(w, "Duration:     %s\n", formatDuration(res.Duration))
}
