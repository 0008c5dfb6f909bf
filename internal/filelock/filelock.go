// Package filelock provides scoped advisory file locks shared between
// processes.
//
// Each entry is guarded by a companion "<entry>.lock" file rather than the
// entry itself, because writers replace the entry inode via rename.
//
// Lock files are only unlinked by TryExclusive callers (garbage collection
// and Clear), so a lock that is held is never removed. A process that opened
// the lock file just before the unlink can still lock the old inode while a
// later process locks a freshly created file, and the two then do not
// exclude each other. Entry contents stay whole in that window because
// every write is published by rename; only the serialization of concurrent
// writers to the same key is lost.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// ErrTimeout is returned when a lock could not be acquired in time.
var ErrTimeout = errors.New("filelock: timed out acquiring lock")

// Suffix is appended to an entry path to form its lock file path.
const Suffix = ".lock"

// defaultRetryDelay is how often a contended lock is retried.
const defaultRetryDelay = 5 * time.Millisecond

// Locker acquires locks bounded by a timeout. The zero value is unusable;
// create one with New.
type Locker struct {
	enabled    bool
	timeout    time.Duration
	retryDelay time.Duration
}

// New returns a Locker. When enabled is false every acquisition succeeds
// immediately without touching the filesystem. A zero timeout means a
// single non-blocking attempt.
func New(enabled bool, timeout time.Duration) *Locker {
	return &Locker{
		enabled:    enabled,
		timeout:    timeout,
		retryDelay: defaultRetryDelay,
	}
}

// Enabled reports whether locking is active.
func (l *Locker) Enabled() bool {
	return l.enabled
}

// Path returns the lock file path guarding entryPath.
func Path(entryPath string) string {
	return entryPath + Suffix
}

// WithShared runs fn while holding a shared lock for entryPath.
func (l *Locker) WithShared(ctx context.Context, entryPath string, fn func() error) error {
	return l.with(ctx, entryPath, true, fn)
}

// WithExclusive runs fn while holding an exclusive lock for entryPath.
func (l *Locker) WithExclusive(ctx context.Context, entryPath string, fn func() error) error {
	return l.with(ctx, entryPath, false, fn)
}

// TryExclusive runs fn only if an exclusive lock can be taken without
// waiting. It reports whether fn ran.
func (l *Locker) TryExclusive(entryPath string, fn func() error) (bool, error) {
	if !l.enabled {
		return true, fn()
	}

	fl := flock.New(Path(entryPath))
	ok, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("locking %s: %w", fl.Path(), err)
	}
	if !ok {
		return false, nil
	}
	defer fl.Unlock()

	return true, fn()
}

func (l *Locker) with(ctx context.Context, entryPath string, shared bool, fn func() error) error {
	if !l.enabled {
		return fn()
	}

	fl := flock.New(Path(entryPath))
	if err := l.acquire(ctx, fl, shared); err != nil {
		return err
	}
	defer fl.Unlock()

	return fn()
}

func (l *Locker) acquire(ctx context.Context, fl *flock.Flock, shared bool) error {
	var (
		ok  bool
		err error
	)

	if l.timeout <= 0 {
		if shared {
			ok, err = fl.TryRLock()
		} else {
			ok, err = fl.TryLock()
		}
	} else {
		lockCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		if shared {
			ok, err = fl.TryRLockContext(lockCtx, l.retryDelay)
		} else {
			ok, err = fl.TryLockContext(lockCtx, l.retryDelay)
		}
		// A parent cancellation is not a timeout.
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("locking %s: %w", fl.Path(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s after %s", ErrTimeout, fl.Path(), l.timeout)
	}
	return nil
}
