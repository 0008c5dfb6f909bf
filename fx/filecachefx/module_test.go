package filecachefx_test

import (
	"context"
	"testing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/discochess/filecache"
	"github.com/discochess/filecache/fx/filecachefx"
)

func TestModule_ProvidesCache(t *testing.T) {
	cfg := filecache.DefaultConfig()
	cfg.CacheDirectory = t.TempDir()
	cfg.GCProbability = 0

	var cache *filecache.Cache
	app := fxtest.New(t,
		fx.Supply(cfg),
		fx.Provide(zap.NewNop),
		filecachefx.Module,
		fx.Populate(&cache),
	)
	app.RequireStart()
	defer app.RequireStop()

	ctx := context.Background()
	if ok, err := cache.Set(ctx, "k", "v"); !ok || err != nil {
		t.Fatalf("Set() = %v, %v", ok, err)
	}
	if got, _ := cache.Get(ctx, "k", nil); got != "v" {
		t.Errorf("Get() = %v, want v", got)
	}
	if cache.Dir() != cfg.CacheDirectory {
		t.Errorf("Dir() = %q, want %q", cache.Dir(), cfg.CacheDirectory)
	}
}

func TestModule_InvalidConfig(t *testing.T) {
	cfg := filecache.DefaultConfig()
	cfg.CacheDirectory = ""

	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(zap.NewNop),
		filecachefx.Module,
		fx.Invoke(func(*filecache.Cache) {}),
		fx.NopLogger,
	)
	if app.Err() == nil {
		t.Fatal("fx.New() error = nil, want invalid config error")
	}
}
