package cache

import "sync/atomic"

// Stats is a read-only snapshot of cache effectiveness: hits, misses,
// entries, and (via HitRate) hit-rate. Cache.Stats does not fill Bytes; it
// stays zero.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int64
	Bytes   int64
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type statCounters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *statCounters) recordHit()  { c.hits.Add(1) }
func (c *statCounters) recordMiss() { c.misses.Add(1) }
