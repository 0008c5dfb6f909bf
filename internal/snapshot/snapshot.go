// Package snapshot copies cache entry files between a cache directory and a
// remote sink, so a fresh node can start with a warm cache.
//
// Entry files are self-describing and their paths are derived from the key,
// so a snapshot is simply the set of entry files named by their path
// relative to the cache directory, using forward slashes.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/discochess/filecache/internal/entry"
	"github.com/discochess/filecache/internal/filelock"
)

// ErrNotFound is returned by Sink.Get when the object does not exist.
var ErrNotFound = errors.New("snapshot: object not found")

// Sink stores snapshot objects.
type Sink interface {
	// Put stores the content of r under name, replacing any existing object.
	Put(ctx context.Context, name string, r io.Reader) error

	// Get opens the object stored under name.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// List returns the names of every stored object.
	List(ctx context.Context) ([]string, error)

	// Close releases any resources held by the sink.
	Close() error
}

// DefaultWorkers is the number of concurrent transfers when Options.Workers
// is not set.
const DefaultWorkers = 8

// Options configures Push and Pull.
type Options struct {
	// Extension is the entry file extension, including the dot.
	Extension string
	// Workers bounds concurrent transfers.
	Workers int
	// Locker guards installed entries in Pull. Nil disables locking.
	Locker *filelock.Locker
	// DirPerm and FilePerm apply to directories and files created by Pull.
	DirPerm  os.FileMode
	FilePerm os.FileMode
	// Now is the time source for expiry checks.
	Now func() time.Time
	// Logger receives per-entry diagnostics.
	Logger *zap.Logger
	// Progress, if set, is called after every transferred entry.
	Progress ProgressFunc
	// MaxItemSize skips snapshot objects larger than this many bytes in
	// Pull. Zero means no limit.
	MaxItemSize int64
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.DirPerm == 0 {
		o.DirPerm = 0o755
	}
	if o.FilePerm == 0 {
		o.FilePerm = 0o644
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Locker == nil {
		o.Locker = filelock.New(false, 0)
	}
	return o
}

// Progress reports transfer progress.
type Progress struct {
	Phase string
	Done  int
	Total int
	Bytes int64
}

// ProgressFunc is called with progress updates.
type ProgressFunc func(Progress)

// Result summarizes a transfer.
type Result struct {
	// Transferred is the number of entries copied.
	Transferred int
	// Skipped is the number of entries left out because they were expired,
	// corrupt, oversize, or older than the local copy.
	Skipped int
	// Bytes is the total size of the transferred entries.
	Bytes int64
}

// transfer runs fn for every name with bounded concurrency. Per-entry
// failures are collected and returned together; cancellation stops the run.
func transfer(ctx context.Context, phase string, names []string, opts Options, fn func(context.Context, string) (int64, bool, error)) (Result, error) {
	var (
		transferred atomic.Int64
		skipped     atomic.Int64
		bytesTotal  atomic.Int64
		done        atomic.Int64

		mu   sync.Mutex
		errs error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, name := range names {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, ok, err := fn(gctx, name)
			switch {
			case err != nil:
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			case ok:
				transferred.Add(1)
				bytesTotal.Add(n)
			default:
				skipped.Add(1)
			}

			d := done.Add(1)
			if opts.Progress != nil {
				opts.Progress(Progress{Phase: phase, Done: int(d), Total: len(names), Bytes: bytesTotal.Load()})
			}
			return nil
		})
	}

	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	res := Result{
		Transferred: int(transferred.Load()),
		Skipped:     int(skipped.Load()),
		Bytes:       bytesTotal.Load(),
	}
	return res, multierr.Append(waitErr, errs)
}

// Push uploads every unexpired entry under root to sink.
func Push(ctx context.Context, root string, sink Sink, opts Options) (Result, error) {
	opts = opts.withDefaults()

	names, err := listEntries(root, opts.Extension)
	if err != nil {
		return Result{}, err
	}
	opts.Logger.Debug("pushing snapshot", zap.String("root", root), zap.Int("entries", len(names)))

	now := opts.Now()
	return transfer(ctx, "push", names, opts, func(ctx context.Context, name string) (int64, bool, error) {
		local := filepath.Join(root, filepath.FromSlash(name))

		h, err := entry.ReadHeader(local)
		switch {
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, entry.ErrCorrupt):
			return 0, false, nil
		case err != nil:
			return 0, false, err
		case h.Expired(now):
			return 0, false, nil
		}

		f, err := os.Open(local)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return 0, false, nil
			}
			return 0, false, err
		}
		defer f.Close()

		var n atomic.Int64
		if err := sink.Put(ctx, name, newCountingReader(f, &n)); err != nil {
			return 0, false, fmt.Errorf("uploading: %w", err)
		}
		return n.Load(), true, nil
	})
}

// Pull downloads every entry in sink into root. Expired and corrupt objects
// are skipped, and a local entry created at the same time or later than the
// remote copy is kept.
func Pull(ctx context.Context, root string, sink Sink, opts Options) (Result, error) {
	opts = opts.withDefaults()

	all, err := sink.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing snapshot: %w", err)
	}

	var names []string
	for _, name := range all {
		if !isEntryName(name, opts.Extension) {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			opts.Logger.Warn("skipping unsafe snapshot name", zap.String("name", name))
			continue
		}
		names = append(names, name)
	}
	opts.Logger.Debug("pulling snapshot", zap.String("root", root), zap.Int("entries", len(names)))

	now := opts.Now()
	return transfer(ctx, "pull", names, opts, func(ctx context.Context, name string) (int64, bool, error) {
		rc, err := sink.Get(ctx, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return 0, false, nil
			}
			return 0, false, fmt.Errorf("downloading: %w", err)
		}
		var body io.Reader = rc
		if opts.MaxItemSize > 0 {
			body = io.LimitReader(rc, opts.MaxItemSize+1)
		}
		data, err := io.ReadAll(body)
		rc.Close()
		if err != nil {
			return 0, false, fmt.Errorf("downloading: %w", err)
		}
		if opts.MaxItemSize > 0 && int64(len(data)) > opts.MaxItemSize {
			opts.Logger.Debug("skipping oversize snapshot object",
				zap.String("name", name), zap.Int64("limit", opts.MaxItemSize))
			return 0, false, nil
		}

		remote, err := entry.ParseHeader(data)
		if err != nil || remote.Expired(now) {
			return 0, false, nil
		}

		local := filepath.Join(root, filepath.FromSlash(name))
		ok, err := install(ctx, local, data, remote, opts)
		if err != nil || !ok {
			return 0, false, err
		}
		return int64(len(data)), true, nil
	})
}

// install writes data to local through a temporary file and a rename,
// unless the local entry is at least as new.
func install(ctx context.Context, local string, data []byte, remote entry.Header, opts Options) (bool, error) {
	dir := filepath.Dir(local)
	if err := os.MkdirAll(dir, opts.DirPerm); err != nil {
		return false, fmt.Errorf("creating directory: %w", err)
	}

	installed := false
	err := opts.Locker.WithExclusive(ctx, local, func() error {
		if h, err := entry.ReadHeader(local); err == nil && !h.CreatedAt.Before(remote.CreatedAt) {
			return nil
		}

		tmp := filepath.Join(dir, "."+filepath.Base(local)+"."+uuid.NewString()+".tmp")
		if err := os.WriteFile(tmp, data, opts.FilePerm); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("writing temp file: %w", err)
		}
		if err := os.Chmod(tmp, opts.FilePerm); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("setting file permissions: %w", err)
		}
		if err := os.Rename(tmp, local); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("renaming temp file: %w", err)
		}
		installed = true
		return nil
	})
	return installed, err
}

// listEntries returns the slash-separated relative names of the entry files
// under root.
func listEntries(root, ext string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p != root {
				return nil
			}
			return err
		}
		if d.IsDir() || !isEntryName(d.Name(), ext) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}
	return names, nil
}

// isEntryName reports whether the last element of a slash path names an
// entry file.
func isEntryName(name, ext string) bool {
	base := path.Base(name)
	return strings.HasSuffix(base, ext) && !strings.HasPrefix(base, ".")
}

// countingReader tracks bytes read.
type countingReader struct {
	r    io.Reader
	read *atomic.Int64
}

func newCountingReader(r io.Reader, counter *atomic.Int64) io.Reader {
	// Seekable bodies stay seekable.
	if rs, ok := r.(io.ReadSeeker); ok {
		return &countingReadSeeker{countingReader{r: rs, read: counter}, rs}
	}
	return &countingReader{r: r, read: counter}
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.read.Add(int64(n))
	return n, err
}

type countingReadSeeker struct {
	countingReader
	s io.Seeker
}

func (crs *countingReadSeeker) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekStart {
		crs.read.Store(0)
	}
	return crs.s.Seek(offset, whence)
}

// ReadAllSeekable returns r as an io.ReadSeeker, buffering it in memory if
// it cannot seek.
func ReadAllSeekable(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
