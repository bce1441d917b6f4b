package sweeper

import "sync/atomic"

type sweepCounters struct {
	scans   atomic.Int64 // completed passes
	removed atomic.Int64 // expired entries removed
	freed   atomic.Int64 // payload bytes released
}

func newSweepCounters() *sweepCounters {
	return &sweepCounters{}
}

func (c *sweepCounters) snapshot() (scans, removed, freed int64) {
	scans = c.scans.Load()
	removed = c.removed.Load()
	freed = c.freed.Load()
	return
}
