package cache

import "sync/atomic"

type counters struct {
	hits         atomic.Int64
	misses       atomic.Int64
	expiredReads atomic.Int64
	evictedItems atomic.Int64
	evictedBytes atomic.Int64
}

func (c *counters) snapshot() (hits, misses, expiredReads, evictedItems, evictedBytes int64) {
	return c.hits.Load(), c.misses.Load(), c.expiredReads.Load(), c.evictedItems.Load(), c.evictedBytes.Load()
}
