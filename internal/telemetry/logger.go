// Package telemetry samples the offline layer on a schedule: per-tier usage
// lines through slog and, when a registry is supplied, prometheus series.
// Everything is computed from counter snapshots; nothing here sits on a hot
// path.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/cache"
	"github.com/transac/go-offline-cache/internal/shared/bytes"
	"github.com/transac/go-offline-cache/internal/sweeper"
	"github.com/transac/go-offline-cache/internal/syncqueue"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.Config
	logger   *slog.Logger
	clk      clock.Clock
	sampler  sampler
	metrics  *Metrics
	interval time.Duration
}

func New(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	clk clock.Clock,
	tiers *cache.TierSet,
	sweep sweeper.Sweeper,
	queue *syncqueue.Queue,
	metrics *Metrics,
) *Logs {
	if clk == nil {
		clk = clock.New()
	}
	ctx, cancel := context.WithCancel(ctx)
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		clk:      clk,
		sampler:  newSampler(tiers, sweep, queue),
		metrics:  metrics,
		interval: cfg.Telemetry.Interval(),
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	return nil
}

/**
 * Private API.
 */

func (l *Logs) run() *Logs {
	if l.cfg.Telemetry.Enabled() || l.metrics != nil {
		go l.loop()
	}
	return l
}

func (l *Logs) loop() {
	ticker := l.clk.Ticker(l.interval)
	defer ticker.Stop()

	budget := bytes.FmtMem(uint64(l.cfg.DB.SizeBytes))
	prev := l.sampler.snapshot(l.ctx)

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := l.sampler.snapshot(l.ctx)
			d := deltaSnapshot(prev, cur)
			prev = cur
			l.publish(cur, d, budget)
		}
	}
}

func (l *Logs) publish(cur, d snapshot, budget string) {
	logsOn := l.cfg.Telemetry.Enabled()
	common := []any{"interval", l.interval.String()}

	for i, ts := range cur.tiers {
		dt := d.tiers[i]
		if logsOn {
			l.logger.Info("tier",
				append(common,
					"name", ts.Name,
					"entries", ts.Entries,
					"size", bytes.FmtMem(uint64(ts.Bytes)),
					"hits", dt.Hits,
					"misses", dt.Misses,
					"expired_reads", dt.ExpiredReads,
					"evicted_items", dt.EvictedItems,
					"evicted_bytes", bytes.FmtMem(uint64(dt.EvictedBytes)),
				)...,
			)
		}
		if l.metrics != nil {
			l.metrics.observeTier(ts, dt)
		}
	}

	if logsOn {
		if d.sweepScans > 0 {
			l.logger.Info("sweeper",
				append(common,
					"passes", d.sweepScans,
					"removed", d.sweepRemoved,
					"freed", bytes.FmtMem(uint64(d.sweepFreed)),
				)...,
			)
		}

		l.logger.Info("sync_queue", append(common, "depth", cur.queueDepth)...)

		l.logger.Info("storage",
			append(common,
				"size", bytes.FmtMem(uint64(cur.memBytes)),
				"entries", cur.entries,
				"budget", budget,
			)...,
		)
	}

	if l.metrics != nil {
		l.metrics.observeTotals(cur, d)
	}
}
