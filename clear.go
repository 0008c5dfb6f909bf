package filecache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/discochess/filecache/internal/filelock"
)

// Clear removes every entry file and every lock file nobody holds, then
// prunes the shard directories left empty. Other files in the cache
// directory are kept.
func (c *Cache) Clear(ctx context.Context) error {
	var (
		files []string
		locks []string
		dirs  []string
		errs  error
	)

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
			if path != c.dir {
				dirs = append(dirs, path)
			}
			return nil
		}

		name := d.Name()
		switch {
		case c.keys.IsEntry(name):
			files = append(files, path)
		case strings.HasSuffix(name, filelock.Suffix) && c.keys.IsEntry(strings.TrimSuffix(name, filelock.Suffix)):
			locks = append(locks, path)
		}
		return nil
	})
	if err != nil {
		return c.fail("clear", "", ErrIO, err)
	}

	for _, path := range files {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}

	// A lock someone holds is kept; its holder may still be writing.
	keptLocks := 0
	for _, lock := range locks {
		entryPath := strings.TrimSuffix(lock, filelock.Suffix)
		ok, err := c.locks.TryExclusive(entryPath, func() error {
			if err := os.Remove(lock); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		})
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			errs = multierr.Append(errs, err)
		case !ok:
			keptLocks++
		}
	}

	// Deepest directories first so parents empty out before they are checked.
	slices.SortFunc(dirs, func(a, b string) int {
		return len(b) - len(a)
	})
	for _, dir := range dirs {
		children, err := os.ReadDir(dir)
		if err != nil || len(children) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}

	c.logger.Debug("cache cleared", zap.Int("files", len(files)), zap.Int("keptLocks", keptLocks))

	if errs != nil {
		return c.fail("clear", "", ErrIO, errs)
	}
	return nil
}
