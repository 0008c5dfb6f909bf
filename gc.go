package filecache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/discochess/filecache/internal/entry"
	"github.com/discochess/filecache/internal/filelock"
	"github.com/discochess/filecache/internal/stats"
)

// minTempAge is the youngest a temporary file can be and still be reaped.
const minTempAge = time.Minute

// GCResult summarizes one garbage collection sweep.
type GCResult struct {
	// Scanned is the number of entry files inspected.
	Scanned int
	// Expired is the number of expired entries removed.
	Expired int
	// Evicted is the number of live entries removed to honor MaxCacheSize.
	Evicted int
	// Corrupt is the number of entries removed because their header was unreadable.
	Corrupt int
	// StaleTemps is the number of abandoned temporary files removed.
	StaleTemps int
	// OrphanLocks is the number of lock files removed whose entry no longer exists.
	OrphanLocks int

	RemainingEntries int
	RemainingBytes   int64
	Duration         time.Duration
}

// Removed returns the number of entries the sweep deleted.
func (r GCResult) Removed() int {
	return r.Expired + r.Evicted + r.Corrupt
}

type scannedEntry struct {
	path     string
	header   entry.Header
	diskSize int64
}

type scannedFile struct {
	path    string
	modTime time.Time
}

// scan is a point-in-time listing of the cache tree.
type scan struct {
	entries []scannedEntry
	corrupt []string
	temps   []scannedFile
	locks   []string
}

// walk lists the cache tree. Files that vanish during the walk are skipped.
func (c *Cache) walk(ctx context.Context) (scan, error) {
	var (
		s    scan
		errs error
	)
	lockSuffix := c.keys.Extension() + filelock.Suffix

	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != c.dir {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		switch {
		case c.keys.IsEntry(name):
			h, err := entry.ReadHeader(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
			case errors.Is(err, entry.ErrCorrupt):
				s.corrupt = append(s.corrupt, path)
			case err != nil:
				errs = multierr.Append(errs, err)
			default:
				var size int64
				if info, err := d.Info(); err == nil {
					size = info.Size()
				}
				s.entries = append(s.entries, scannedEntry{path: path, header: h, diskSize: size})
			}

		case strings.HasSuffix(name, lockSuffix) && !strings.HasPrefix(name, "."):
			s.locks = append(s.locks, path)

		case strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempSuffix):
			info, err := d.Info()
			if err != nil {
				return nil
			}
			s.temps = append(s.temps, scannedFile{path: path, modTime: info.ModTime()})
		}
		return nil
	})
	if err != nil {
		return s, fmt.Errorf("walking %s: %w", c.dir, err)
	}
	return s, errs
}

// GC removes expired, corrupt and surplus entries. When the remaining
// entries still exceed MaxCacheSize, the oldest entries are evicted first.
// An entry rewritten while the sweep runs is never removed.
func (c *Cache) GC(ctx context.Context) (GCResult, error) {
	start := time.Now()
	var res GCResult

	s, errs := c.walk(ctx)
	if err := ctx.Err(); err != nil {
		return res, c.fail("gc", "", ErrIO, err)
	}
	res.Scanned = len(s.entries) + len(s.corrupt)
	now := c.now()

	for _, path := range s.corrupt {
		ok, err := c.removeCorrupt(path)
		errs = multierr.Append(errs, err)
		if ok {
			res.Corrupt++
		}
	}

	live := s.entries[:0]
	for _, e := range s.entries {
		if !e.header.Expired(now) {
			live = append(live, e)
			continue
		}
		ok, err := c.removeExpired(ctx, e.path)
		if errors.Is(err, filelock.ErrTimeout) {
			err = nil
		}
		errs = multierr.Append(errs, err)
		if ok {
			res.Expired++
		} else if err == nil {
			if h, err := entry.ReadHeader(e.path); err == nil {
				live = append(live, scannedEntry{path: e.path, header: h, diskSize: e.diskSize})
			}
		}
	}

	var total int64
	for _, e := range live {
		total += e.header.RawSize
	}

	if total > c.cfg.MaxCacheSize {
		slices.SortFunc(live, func(a, b scannedEntry) int {
			if n := a.header.CreatedAt.Compare(b.header.CreatedAt); n != 0 {
				return n
			}
			return cmp.Compare(a.path, b.path)
		})

		kept := live[:0]
		for i, e := range live {
			if total <= c.cfg.MaxCacheSize {
				kept = append(kept, live[i:]...)
				break
			}
			current, ok, err := c.evict(ctx, e)
			errs = multierr.Append(errs, err)
			if ok {
				res.Evicted++
				total -= e.header.RawSize
				continue
			}
			if current != nil {
				total += current.RawSize - e.header.RawSize
				kept = append(kept, scannedEntry{path: e.path, header: *current, diskSize: e.diskSize})
			} else {
				total -= e.header.RawSize
			}
		}
		live = kept
	}

	staleAfter := max(minTempAge, 2*c.cfg.LockTimeout)
	for _, t := range s.temps {
		if now.Sub(t.modTime) < staleAfter {
			continue
		}
		if err := os.Remove(t.path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = multierr.Append(errs, err)
			}
			continue
		}
		res.StaleTemps++
	}

	for _, lock := range s.locks {
		ok, err := c.removeOrphanLock(lock)
		errs = multierr.Append(errs, err)
		if ok {
			res.OrphanLocks++
		}
	}

	res.RemainingEntries = len(live)
	res.RemainingBytes = total
	res.Duration = time.Since(start)

	if c.counters.enabled {
		c.stats.IncCounter(stats.MetricGCRuns, 1)
		c.stats.IncCounter(stats.MetricGCRemoved, int64(res.Removed()))
		c.stats.ObserveHistogram(stats.MetricGCDuration, res.Duration.Seconds())
		c.stats.SetGauge(stats.MetricSizeBytes, res.RemainingBytes)
		c.stats.SetGauge(stats.MetricEntries, int64(res.RemainingEntries))
	}

	c.logger.Debug("gc complete",
		zap.Int("scanned", res.Scanned),
		zap.Int("expired", res.Expired),
		zap.Int("evicted", res.Evicted),
		zap.Int("corrupt", res.Corrupt),
		zap.Int("staleTemps", res.StaleTemps),
		zap.Int("orphanLocks", res.OrphanLocks),
		zap.Int64("remainingBytes", res.RemainingBytes),
		zap.Duration("duration", res.Duration),
	)

	if errs != nil {
		return res, c.fail("gc", "", ErrIO, errs)
	}
	return res, nil
}

// evict removes a live entry unless it was rewritten since the scan. When
// the entry survives, its current header is returned.
func (c *Cache) evict(ctx context.Context, e scannedEntry) (*entry.Header, bool, error) {
	var (
		current *entry.Header
		removed bool
	)
	err := c.locks.WithExclusive(ctx, e.path, func() error {
		h, err := entry.ReadHeader(e.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil
		case err != nil:
			return err
		case !h.CreatedAt.Equal(e.header.CreatedAt):
			current = &h
			return nil
		}
		if err := os.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed = true
		return nil
	})
	if errors.Is(err, filelock.ErrTimeout) {
		return &e.header, false, nil
	}
	return current, removed, err
}

// removeCorrupt deletes an entry whose header cannot be parsed, provided
// nobody holds its lock.
func (c *Cache) removeCorrupt(path string) (bool, error) {
	removed := false
	_, err := c.locks.TryExclusive(path, func() error {
		if _, err := entry.ReadHeader(path); !errors.Is(err, entry.ErrCorrupt) {
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

// removeOrphanLock deletes a lock file whose entry is gone, provided nobody
// holds it.
func (c *Cache) removeOrphanLock(lock string) (bool, error) {
	entryPath := strings.TrimSuffix(lock, filelock.Suffix)
	if _, err := os.Stat(entryPath); !errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	removed := false
	_, err := c.locks.TryExclusive(entryPath, func() error {
		if _, err := os.Stat(entryPath); !errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err := os.Remove(lock); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed = true
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return removed, err
}
