// Package filecache provides a persistent key-value cache backed by the
// local filesystem, with one self-describing file per entry.
//
// Multiple goroutines and multiple processes may share one cache directory.
// Writers publish entries through a temporary file and an atomic rename, so
// readers never observe a partially written value.
//
// Example usage:
//
//	cfg := filecache.DefaultConfig()
//	cfg.CacheDirectory = "/var/cache/myapp"
//
//	cache, err := filecache.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := cache.Set(ctx, "user:1", map[string]any{"name": "Alice"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	v, err := cache.Get(ctx, "user:1", nil)
package filecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/discochess/filecache/internal/digest"
	"github.com/discochess/filecache/internal/entry"
	"github.com/discochess/filecache/internal/filelock"
	"github.com/discochess/filecache/internal/keycodec"
	"github.com/discochess/filecache/internal/serializer"
	"github.com/discochess/filecache/internal/stats"
)

// tempSuffix marks in-flight writes.
const tempSuffix = ".tmp"

// Cache is a filesystem-backed cache.
// A Cache is safe for concurrent use by multiple goroutines.
type Cache struct {
	cfg    Config
	dir    string
	keys   *keycodec.Codec
	codec  *entry.Codec
	locks  *filelock.Locker
	stats  stats.Collector
	logger *zap.Logger
	now    func() time.Time
	random func(n int) int

	counters counters
}

// New creates a Cache from cfg. The configuration is validated first and
// the cache directory is created if it does not exist.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}

	hasher, err := digest.New(cfg.KeyHashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("creating hasher: %w", err)
	}

	keys, err := keycodec.New(hasher, cfg.Namespace, cfg.KeyPrefix, cfg.shardDepth(), cfg.FileExtension, o.memoSize)
	if err != nil {
		return nil, fmt.Errorf("creating key codec: %w", err)
	}

	codec, err := entry.NewCodec(entry.Options{
		Serializer:  string(cfg.Serializer),
		Compression: cfg.CompressionEnabled,
		Algorithm:   cfg.CompressionAlgorithm,
		Level:       cfg.CompressionLevel,
		Threshold:   cfg.CompressionThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("creating entry codec: %w", err)
	}

	c := &Cache{
		cfg:    cfg,
		dir:    filepath.Clean(cfg.CacheDirectory),
		keys:   keys,
		codec:  codec,
		locks:  filelock.New(cfg.FileLocking, cfg.LockTimeout),
		stats:  o.stats,
		logger: o.logger.Named("filecache"),
		now:    o.now,
		random: o.random,
	}
	c.counters.enabled = cfg.EnableStatistics

	if err := os.MkdirAll(c.dir, cfg.DirectoryPermissions); err != nil {
		return nil, &OpError{Op: "new", Kind: ErrIO, Err: err}
	}

	c.logger.Debug("cache initialized",
		zap.String("dir", c.dir),
		zap.String("hash", hasher.Name()),
		zap.Int("shardDepth", cfg.shardDepth()),
		zap.String("serializer", string(cfg.Serializer)),
		zap.Bool("locking", cfg.FileLocking),
	)

	return c, nil
}

// Register records a concrete type for the native serializer. Types stored
// inside interface values, such as struct values in a map[string]any, must
// be registered before they are written or read.
func Register(value any) {
	serializer.Register(value)
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Config returns a copy of the configuration the cache was built from.
func (c *Cache) Config() Config {
	return c.cfg
}

// Get returns the value stored under key, or def if the key is absent,
// expired, or unreadable.
func (c *Cache) Get(ctx context.Context, key string, def any) (any, error) {
	path, err := c.entryPath(key)
	if err != nil {
		return def, err
	}

	value, ok, err := c.read(ctx, path)
	if err != nil {
		c.counters.miss(c)
		return def, c.fail("get", key, kindOf(err), err)
	}
	if !ok {
		c.counters.miss(c)
		return def, nil
	}

	c.counters.hit(c)
	return value, nil
}

// Set stores value under key. Without WithTTL the entry lives for
// DefaultTTL, or MaxTTL when DefaultTTL is zero.
func (c *Cache) Set(ctx context.Context, key string, value any, opts ...SetOption) (bool, error) {
	path, err := c.entryPath(key)
	if err != nil {
		return false, err
	}

	ttl, ok := c.effectiveTTL(opts)
	if !ok {
		if _, err := c.remove(ctx, path); err != nil {
			return false, c.fail("set", key, kindOf(err), err)
		}
		return true, nil
	}

	now := c.now()
	data, _, err := c.codec.Encode(value, now, now.Add(ttl))
	if err != nil {
		return false, c.fail("set", key, ErrDecode, fmt.Errorf("encoding value: %w", err))
	}
	if int64(len(data)) > c.cfg.MaxItemSize {
		err := fmt.Errorf("entry is %d bytes, limit is %d", len(data), c.cfg.MaxItemSize)
		return false, c.fail("set", key, ErrCapacity, err)
	}

	if err := c.write(ctx, path, data); err != nil {
		return false, c.fail("set", key, kindOf(err), err)
	}
	c.counters.set(c)

	c.maybeGC(ctx)
	return true, nil
}

// Has reports whether an unexpired entry exists for key. Only the entry
// header is read and the hit and miss counters are not touched.
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	path, err := c.entryPath(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, c.fail("has", key, ErrIO, err)
	}

	var h entry.Header
	err = c.locks.WithShared(ctx, path, func() error {
		var err error
		h, err = entry.ReadHeader(path)
		return err
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, c.fail("has", key, kindOf(err), err)
	}

	return !h.Expired(c.now()), nil
}

// Delete removes the entry for key. It reports whether a file was removed;
// deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	path, err := c.entryPath(key)
	if err != nil {
		return false, err
	}

	removed, err := c.remove(ctx, path)
	if err != nil {
		return false, c.fail("delete", key, kindOf(err), err)
	}
	return removed, nil
}

// entryPath returns the absolute entry path for key.
func (c *Cache) entryPath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	return filepath.Join(c.dir, c.keys.Path(key)), nil
}

// read loads and decodes the entry at path. It reports false for absent
// and expired entries; expired entries are removed best-effort.
func (c *Cache) read(ctx context.Context, path string) (any, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var data []byte
	err := c.locks.WithShared(ctx, path, func() error {
		var err error
		data, err = os.ReadFile(path)
		return err
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	value, h, err := c.codec.Decode(data)
	if err != nil {
		return nil, false, err
	}

	if h.Expired(c.now()) {
		if _, err := c.removeExpired(ctx, path); err != nil {
			c.logger.Debug("removing expired entry", zap.String("path", path), zap.Error(err))
		}
		return nil, false, nil
	}
	return value, true, nil
}

// write publishes data at path through a temporary file and a rename.
func (c *Cache) write(ctx context.Context, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := c.ensureDir(dir); err != nil {
		return err
	}

	return c.locks.WithExclusive(ctx, path, func() error {
		tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+tempSuffix)
		if err := c.writeFile(tmp, data); err != nil {
			os.Remove(tmp)
			return err
		}
		if err := os.Rename(tmp, path); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("renaming %s: %w", tmp, err)
		}
		return nil
	})
}

func (c *Cache) writeFile(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, c.cfg.FilePermissions)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	// OpenFile is subject to the umask.
	if err := os.Chmod(name, c.cfg.FilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}
	return nil
}

// ensureDir creates dir and any missing shard directories above it.
func (c *Cache) ensureDir(dir string) error {
	if dir == c.dir || len(dir) <= len(c.dir) {
		return os.MkdirAll(c.dir, c.cfg.DirectoryPermissions)
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if err := c.ensureDir(filepath.Dir(dir)); err != nil {
		return err
	}

	if err := os.Mkdir(dir, c.cfg.DirectoryPermissions); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.Chmod(dir, c.cfg.DirectoryPermissions); err != nil {
		return fmt.Errorf("setting directory permissions: %w", err)
	}
	return nil
}

// remove deletes the entry at path under an exclusive lock.
func (c *Cache) remove(ctx context.Context, path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	removed := false
	err := c.locks.WithExclusive(ctx, path, func() error {
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if removed {
		c.counters.delete(c)
	}
	return removed, nil
}

// removeExpired deletes the entry at path if it is still expired once the
// exclusive lock is held. A concurrent rewrite keeps the entry alive.
func (c *Cache) removeExpired(ctx context.Context, path string) (bool, error) {
	removed := false
	err := c.locks.WithExclusive(ctx, path, func() error {
		h, err := entry.ReadHeader(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil
		case err != nil:
			return err
		case !h.Expired(c.now()):
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}

// maybeGC runs a sweep with probability GCProbability/GCDivisor.
func (c *Cache) maybeGC(ctx context.Context) {
	if c.cfg.GCProbability <= 0 || c.random(c.cfg.GCDivisor) >= c.cfg.GCProbability {
		return
	}
	if _, err := c.GC(ctx); err != nil {
		c.logger.Warn("automatic gc failed", zap.Error(err))
	}
}

// kindOf classifies an internal failure.
func kindOf(err error) error {
	switch {
	case errors.Is(err, filelock.ErrTimeout):
		return ErrLockTimeout
	case errors.Is(err, entry.ErrCorrupt):
		return ErrDecode
	default:
		return ErrIO
	}
}
