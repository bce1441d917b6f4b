package telemetry

import (
	"context"

	"github.com/transac/go-offline-cache/internal/cache"
	"github.com/transac/go-offline-cache/internal/sweeper"
	"github.com/transac/go-offline-cache/internal/syncqueue"
)

type sampler struct {
	tiers *cache.TierSet
	sweep sweeper.Sweeper
	queue *syncqueue.Queue
}

func newSampler(tiers *cache.TierSet, sweep sweeper.Sweeper, queue *syncqueue.Queue) sampler {
	return sampler{tiers: tiers, sweep: sweep, queue: queue}
}

// snapshot holds cumulative counters (monotonic) plus current gauges.
type snapshot struct {
	tiers    []cache.TierStats
	memBytes int64
	entries  int64

	queueDepth int

	sweepScans   int64
	sweepRemoved int64
	sweepFreed   int64
}

func (s sampler) snapshot(ctx context.Context) snapshot {
	scans, removed, freed := s.sweep.SweeperMetrics()
	snap := snapshot{
		tiers:        s.tiers.Stats(),
		memBytes:     s.tiers.Mem(),
		entries:      s.tiers.Len(),
		sweepScans:   scans,
		sweepRemoved: removed,
		sweepFreed:   freed,
	}
	if depth, err := s.queue.Len(ctx); err == nil {
		snap.queueDepth = depth
	}
	return snap
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas; gauges
// (entries, sizes, queue depth) are carried over from cur as they are.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	d := snapshot{
		tiers:        make([]cache.TierStats, len(cur.tiers)),
		memBytes:     cur.memBytes,
		entries:      cur.entries,
		queueDepth:   cur.queueDepth,
		sweepScans:   delta(prev.sweepScans, cur.sweepScans),
		sweepRemoved: delta(prev.sweepRemoved, cur.sweepRemoved),
		sweepFreed:   delta(prev.sweepFreed, cur.sweepFreed),
	}
	for i, ts := range cur.tiers {
		d.tiers[i] = ts
		if i < len(prev.tiers) && prev.tiers[i].Name == ts.Name {
			p := prev.tiers[i]
			d.tiers[i].Hits = delta(p.Hits, ts.Hits)
			d.tiers[i].Misses = delta(p.Misses, ts.Misses)
			d.tiers[i].ExpiredReads = delta(p.ExpiredReads, ts.ExpiredReads)
			d.tiers[i].EvictedItems = delta(p.EvictedItems, ts.EvictedItems)
			d.tiers[i].EvictedBytes = delta(p.EvictedBytes, ts.EvictedBytes)
		}
	}
	return d
}

func delta(prev, cur int64) int64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}
