package filecache

import (
	"sync/atomic"

	"github.com/discochess/filecache/internal/stats"
)

// Stats is a snapshot of the per-instance operation counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
	Errors  int64
}

// HitRate returns Hits / (Hits + Misses), or 0 when nothing was read.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// counters are the live counters behind Stats.
type counters struct {
	enabled bool
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
	errs    atomic.Int64
}

func (n *counters) inc(c *Cache, v *atomic.Int64, metric string) {
	if !n.enabled {
		return
	}
	v.Add(1)
	c.stats.IncCounter(metric, 1)
}

func (n *counters) hit(c *Cache)    { n.inc(c, &n.hits, stats.MetricHits) }
func (n *counters) miss(c *Cache)   { n.inc(c, &n.misses, stats.MetricMisses) }
func (n *counters) set(c *Cache)    { n.inc(c, &n.sets, stats.MetricSets) }
func (n *counters) delete(c *Cache) { n.inc(c, &n.deletes, stats.MetricDeletes) }
func (n *counters) errors(c *Cache) { n.inc(c, &n.errs, stats.MetricErrors) }

func (n *counters) snapshot() Stats {
	return Stats{
		Hits:    n.hits.Load(),
		Misses:  n.misses.Load(),
		Sets:    n.sets.Load(),
		Deletes: n.deletes.Load(),
		Errors:  n.errs.Load(),
	}
}

func (n *counters) reset() {
	n.hits.Store(0)
	n.misses.Store(0)
	n.sets.Store(0)
	n.deletes.Store(0)
	n.errs.Store(0)
}

// Stats returns a snapshot of the operation counters. All counters are zero
// when statistics are disabled.
func (c *Cache) Stats() Stats {
	return c.counters.snapshot()
}

// ResetStats zeroes the operation counters. Metrics already mirrored to the
// stats collector are not affected.
func (c *Cache) ResetStats() {
	c.counters.reset()
}
