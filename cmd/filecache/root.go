package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/filecache"
	"github.com/discochess/filecache/internal/configfile"
	"github.com/discochess/filecache/internal/stats"
)

var (
	// Global flags.
	configPath string
	cacheDir   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "filecache",
	Short: "Inspect and maintain a file-backed cache directory",
	Long: `Filecache reads, writes and maintains the entries of a file-backed
cache. Configuration comes from an optional YAML, JSON or TOML file and
FILECACHE_* environment variables.

Examples:
  # Store and read a value
  filecache set user:1 '{"name":"Alice"}' --json --ttl 1h
  filecache get user:1

  # Run one garbage collection sweep
  filecache gc --config ./filecache.yaml

  # Copy the live entries to a bucket
  filecache snapshot push gs://my-bucket/cache`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVarP(&cacheDir, "dir", "d", "", "cache directory, overrides the configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig() (filecache.Config, error) {
	cfg, err := configfile.Load(configPath)
	if err != nil {
		return filecache.Config{}, err
	}
	return applyFlags(cfg)
}

func applyFlags(cfg filecache.Config) (filecache.Config, error) {
	if cacheDir != "" {
		cfg.CacheDirectory = cacheDir
	}
	if err := cfg.Validate(); err != nil {
		return filecache.Config{}, err
	}
	return cfg, nil
}

// openCache loads the configuration and opens the cache. A nil collector
// leaves metrics disabled.
func openCache(logger *zap.Logger, collector stats.Collector) (*filecache.Cache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newCache(cfg, logger, collector)
}

func newCache(cfg filecache.Config, logger *zap.Logger, collector stats.Collector) (*filecache.Cache, error) {
	opts := []filecache.Option{filecache.WithLogger(logger)}
	if collector != nil {
		opts = append(opts, filecache.WithStats(collector))
	}
	cache, err := filecache.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return cache, nil
}
