package snapshot_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/discochess/filecache"
	"github.com/discochess/filecache/internal/entry"
	"github.com/discochess/filecache/internal/snapshot"
	"github.com/discochess/filecache/internal/snapshot/dirsink"
	"github.com/discochess/filecache/internal/snapshot/memsink"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newCache(t *testing.T, dir string, now func() time.Time) *filecache.Cache {
	t.Helper()
	cfg := filecache.DefaultConfig()
	cfg.CacheDirectory = dir
	cfg.GCProbability = 0
	cfg.ErrorHandling = filecache.ErrorHandlingThrow
	c, err := filecache.New(cfg, filecache.WithClock(now))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPushPull(t *testing.T) {
	ctx := context.Background()
	src := newCache(t, t.TempDir(), fixed(epoch))

	src.Set(ctx, "live:1", "one")
	src.Set(ctx, "live:2", map[string]any{"n": 2})
	src.Set(ctx, "short", "gone soon", filecache.WithTTL(time.Second))

	later := epoch.Add(time.Minute)
	sink := memsink.New()
	var progressCalls atomic.Int64
	res, err := snapshot.Push(ctx, src.Dir(), sink, snapshot.Options{
		Extension: ".cache",
		Workers:   2,
		Now:       fixed(later),
		Progress:  func(snapshot.Progress) { progressCalls.Add(1) },
	})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if res.Transferred != 2 || res.Skipped != 1 {
		t.Errorf("Push() = %+v, want 2 transferred and 1 skipped", res)
	}
	if res.Bytes <= 2*entry.HeaderSize {
		t.Errorf("Push() Bytes = %d, want more than two headers", res.Bytes)
	}
	if progressCalls.Load() != 3 {
		t.Errorf("progress called %d times, want 3", progressCalls.Load())
	}

	names, _ := sink.List(ctx)
	for _, name := range names {
		if strings.Contains(name, "\\") || strings.HasPrefix(name, "/") {
			t.Errorf("snapshot name %q is not a relative slash path", name)
		}
	}

	dst := newCache(t, t.TempDir(), fixed(later))
	res, err = snapshot.Pull(ctx, dst.Dir(), sink, snapshot.Options{Extension: ".cache", Now: fixed(later)})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if res.Transferred != 2 {
		t.Errorf("Pull() = %+v, want 2 transferred", res)
	}

	if got, _ := dst.Get(ctx, "live:1", nil); got != "one" {
		t.Errorf("Get(live:1) = %v, want one", got)
	}
	if has, _ := dst.Has(ctx, "short"); has {
		t.Error("expired entry was restored")
	}
}

func TestPull_SkipsExpiredCorruptAndStale(t *testing.T) {
	ctx := context.Background()
	src := newCache(t, t.TempDir(), fixed(epoch))
	src.Set(ctx, "k", "remote")

	sink := memsink.New()
	if _, err := snapshot.Push(ctx, src.Dir(), sink, snapshot.Options{Extension: ".cache", Now: fixed(epoch)}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	sink.SetObject("zz/zz/corrupt.cache", []byte("nope"))
	sink.SetObject("../../escape.cache", []byte("nope"))
	sink.SetObject("notes.txt", []byte("ignored"))

	// The destination already holds a newer value for the same key.
	dst := newCache(t, t.TempDir(), fixed(epoch.Add(time.Hour)))
	dst.Set(ctx, "k", "local")

	res, err := snapshot.Pull(ctx, dst.Dir(), sink, snapshot.Options{Extension: ".cache", Now: fixed(epoch)})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if res.Transferred != 0 || res.Skipped != 2 {
		t.Errorf("Pull() = %+v, want 0 transferred and 2 skipped", res)
	}
	if got, _ := dst.Get(ctx, "k", nil); got != "local" {
		t.Errorf("Get() = %v, want the newer local value", got)
	}
}

func TestPull_SkipsOversizeObjects(t *testing.T) {
	ctx := context.Background()
	src := newCache(t, t.TempDir(), fixed(epoch))
	src.Set(ctx, "small", "s")
	src.Set(ctx, "big", strings.Repeat("x", 4096))

	sink := memsink.New()
	if _, err := snapshot.Push(ctx, src.Dir(), sink, snapshot.Options{Extension: ".cache", Now: fixed(epoch)}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	dst := newCache(t, t.TempDir(), fixed(epoch))
	res, err := snapshot.Pull(ctx, dst.Dir(), sink, snapshot.Options{
		Extension:   ".cache",
		Now:         fixed(epoch),
		MaxItemSize: 1024,
	})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if res.Transferred != 1 || res.Skipped != 1 {
		t.Errorf("Pull() = %+v, want 1 transferred and 1 skipped", res)
	}
	if res.Bytes > 1024 {
		t.Errorf("Pull() Bytes = %d, want at most the item limit", res.Bytes)
	}
	if got, _ := dst.Get(ctx, "small", nil); got != "s" {
		t.Errorf("Get(small) = %v, want s", got)
	}
	if has, _ := dst.Has(ctx, "big"); has {
		t.Error("oversize entry was restored")
	}
}

func TestPushPull_DirSink(t *testing.T) {
	ctx := context.Background()
	src := newCache(t, t.TempDir(), fixed(epoch))
	src.Set(ctx, "a", 1)
	src.Set(ctx, "b", 2)

	sink, err := dirsink.New(t.TempDir())
	if err != nil {
		t.Fatalf("dirsink.New() error = %v", err)
	}
	defer sink.Close()

	if _, err := snapshot.Push(ctx, src.Dir(), sink, snapshot.Options{Extension: ".cache", Now: fixed(epoch)}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	dst := newCache(t, t.TempDir(), fixed(epoch))
	if _, err := snapshot.Pull(ctx, dst.Dir(), sink, snapshot.Options{Extension: ".cache", Now: fixed(epoch)}); err != nil {
		t.Fatalf("Pull() error = %v", err)
	}

	got, err := dst.GetMultiple(ctx, []string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("GetMultiple() error = %v", err)
	}
	if got["a"] != 1 || got["b"] != 2 {
		t.Errorf("GetMultiple() = %v", got)
	}
}

// brokenSink fails every upload.
type brokenSink struct {
	*memsink.Sink
}

func (b brokenSink) Put(ctx context.Context, name string, r io.Reader) error {
	return errors.New("boom")
}

func TestPush_CollectsErrors(t *testing.T) {
	ctx := context.Background()
	src := newCache(t, t.TempDir(), fixed(epoch))
	src.Set(ctx, "a", 1)
	src.Set(ctx, "b", 2)

	res, err := snapshot.Push(ctx, src.Dir(), brokenSink{memsink.New()}, snapshot.Options{Extension: ".cache", Now: fixed(epoch)})
	if err == nil {
		t.Fatal("Push() error = nil, want error")
	}
	if strings.Count(err.Error(), "boom") != 2 {
		t.Errorf("Push() error = %v, want both failures reported", err)
	}
	if res.Transferred != 0 {
		t.Errorf("Transferred = %d, want 0", res.Transferred)
	}
}

func TestPush_Canceled(t *testing.T) {
	src := newCache(t, t.TempDir(), fixed(epoch))
	src.Set(context.Background(), "a", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := snapshot.Push(ctx, src.Dir(), memsink.New(), snapshot.Options{Extension: ".cache", Now: fixed(epoch)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Push() error = %v, want context.Canceled", err)
	}
}
