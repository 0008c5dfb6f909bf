// Package filecachefx provides an fx module for a file-backed cache.
package filecachefx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/filecache"
	"github.com/discochess/filecache/internal/stats"
	"github.com/discochess/filecache/internal/stats/logger"
)

// Module provides a *filecache.Cache.
// Requires a filecache.Config and a *zap.Logger to be provided.
var Module = fx.Module("filecache",
	fx.Provide(
		newStatsCollector,
		newCache,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("filecache.stats"))
}

// Params holds dependencies for creating the cache.
type Params struct {
	fx.In

	Config    filecache.Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided cache.
type Result struct {
	fx.Out

	Cache *filecache.Cache
}

func newCache(p Params) (Result, error) {
	cache, err := filecache.New(p.Config,
		filecache.WithStats(p.Collector),
		filecache.WithLogger(p.Logger),
	)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			s := cache.Stats()
			p.Logger.Info("filecache stopped",
				zap.Int64("hits", s.Hits),
				zap.Int64("misses", s.Misses),
				zap.Int64("sets", s.Sets),
				zap.Int64("deletes", s.Deletes),
				zap.Int64("errors", s.Errors),
			)
			return nil
		},
	})

	return Result{Cache: cache}, nil
}
