package filecache

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/filecache/internal/stats"
)

// Option configures a Cache.
type Option interface {
	apply(*options)
}

// options holds the runtime collaborators of a Cache.
type options struct {
	logger   *zap.Logger
	stats    stats.Collector
	now      func() time.Time
	random   func(n int) int
	memoSize int
}

// defaultOptions returns the default collaborators.
func defaultOptions() options {
	return options{
		logger: zap.NewNop(),
		stats:  stats.NewNoop(),
		now:    time.Now,
		random: rand.IntN,
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithStats sets the stats collector that mirrors the built-in counters.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithClock sets the time source used for creation and expiry timestamps.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(o *options) {
		o.now = now
	})
}

// WithRandom sets the source used for the garbage collection trial.
// The function must return a value in [0, n).
func WithRandom(random func(n int) int) Option {
	return optionFunc(func(o *options) {
		o.random = random
	})
}

// WithPathMemo remembers the derived paths of up to size recently used keys.
func WithPathMemo(size int) Option {
	return optionFunc(func(o *options) {
		o.memoSize = size
	})
}

// SetOption configures a single Set call.
type SetOption interface {
	applySet(*setOptions)
}

type setOptions struct {
	ttl    time.Duration
	hasTTL bool
}

type setOptionFunc func(*setOptions)

var _ SetOption = setOptionFunc(nil)

func (f setOptionFunc) applySet(o *setOptions) { f(o) }

// WithTTL sets an explicit time-to-live. A TTL above MaxTTL is clamped to
// MaxTTL. A TTL of zero or less stores nothing and deletes any existing
// entry for the key.
func WithTTL(d time.Duration) SetOption {
	return setOptionFunc(func(o *setOptions) {
		o.ttl = d
		o.hasTTL = true
	})
}

// effectiveTTL resolves the time-to-live for a Set call. The second result
// is false when the entry would expire immediately.
func (c *Cache) effectiveTTL(opts []SetOption) (time.Duration, bool) {
	var so setOptions
	for _, opt := range opts {
		opt.applySet(&so)
	}

	ttl := c.cfg.DefaultTTL
	if so.hasTTL {
		if so.ttl <= 0 {
			return 0, false
		}
		ttl = so.ttl
	}
	if ttl == 0 || ttl > c.cfg.MaxTTL {
		ttl = c.cfg.MaxTTL
	}
	return ttl, true
}
