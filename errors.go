package filecache

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrInvalidConfig indicates that Config.Validate failed.
	ErrInvalidConfig = errors.New("filecache: invalid config")

	// ErrInvalidKey indicates an empty key.
	ErrInvalidKey = errors.New("filecache: invalid key")

	// ErrIO indicates a filesystem or locking failure.
	ErrIO = errors.New("filecache: i/o error")

	// ErrLockTimeout indicates a lock was not acquired within LockTimeout.
	// It also matches ErrIO.
	ErrLockTimeout = fmt.Errorf("%w: lock timeout", ErrIO)

	// ErrDecode indicates a corrupt entry, or a value the serializer cannot
	// encode.
	ErrDecode = errors.New("filecache: decode error")

	// ErrCapacity indicates an entry larger than MaxItemSize.
	ErrCapacity = errors.New("filecache: item too large")
)

// ConfigError lists every problem found by Config.Validate.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return ErrInvalidConfig.Error() + ": " + strings.Join(e.Problems, "; ")
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// OpError describes a failed cache operation.
type OpError struct {
	// Op is the operation name, e.g. "get" or "set".
	Op string
	// Key is the logical key, empty for whole-cache operations.
	Key string
	// Kind is one of ErrIO, ErrLockTimeout, ErrDecode or ErrCapacity.
	Kind error
	// Err is the underlying cause.
	Err error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %q: %v", e.Kind, e.Op, e.Key, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// fail records a failure and applies the error handling policy. It returns
// nil unless the policy is ErrorHandlingThrow.
func (c *Cache) fail(op, key string, kind, err error) error {
	c.counters.errors(c)

	opErr := &OpError{Op: op, Key: key, Kind: kind, Err: err}
	switch c.cfg.ErrorHandling {
	case ErrorHandlingThrow:
		return opErr
	case ErrorHandlingLog:
		c.logger.Error("cache operation failed",
			zap.String("op", op),
			zap.String("key", key),
			zap.String("kind", kind.Error()),
			zap.Error(err),
		)
	}
	return nil
}
