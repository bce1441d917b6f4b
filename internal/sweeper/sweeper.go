// Package sweeper removes expired tier entries that nobody reads anymore.
// Reads already drop expired entries opportunistically; the sweep is the
// safety net behind them, one rate-limited full pass per interval.
package sweeper

import (
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/cache"
	sharedbytes "github.com/transac/go-offline-cache/internal/shared/bytes"
	"github.com/transac/go-offline-cache/internal/shared/rate"
)

type Sweeper interface {
	// SweeperMetrics reports pass and removal totals since start.
	SweeperMetrics() (scans, removed, freed int64)
	// ForceSweep runs one pass now and waits for it to finish.
	ForceSweep(ctx context.Context) error
	Close() error
}

type SweepWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.SweepCfg
	tiers    *cache.TierSet
	logger   *slog.Logger
	clk      clock.Clock
	jitter   *rate.Jitter
	counters *sweepCounters
	forceCh  chan chan struct{}
}

func New(ctx context.Context, cfg *config.SweepCfg, logger *slog.Logger, tiers *cache.TierSet, clk clock.Clock) Sweeper {
	if !cfg.Enabled() {
		return &NoOpSweeper{}
	}
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(ctx)

	return (&SweepWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		tiers:    tiers,
		logger:   logger,
		clk:      clk,
		jitter:   rate.NewJitter(ctx, cfg.Rate),
		counters: newSweepCounters(),
		forceCh:  make(chan chan struct{}),
	}).run()
}

func (w *SweepWorker) SweeperMetrics() (scans, removed, freed int64) {
	return w.counters.snapshot()
}

func (w *SweepWorker) ForceSweep(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case w.forceCh <- done:
	case <-w.ctx.Done():
		return w.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-w.ctx.Done():
		return w.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *SweepWorker) Close() error {
	w.cancel()
	return nil
}

/**
 * Private API.
 */

func (w *SweepWorker) run() *SweepWorker {
	w.logger.Info("sweeper is running", "interval", w.cfg.Interval, "rate", w.cfg.Rate)

	go func() {
		defer w.logger.Info("sweeper is stopped")
		ticker := w.clk.Ticker(w.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.sweep()
			case done := <-w.forceCh:
				w.sweep()
				close(done)
			}
		}
	}()

	return w
}

func (w *SweepWorker) sweep() {
	w.counters.scans.Add(1)
	removed, freed := w.tiers.SweepExpired(w.jitter.Take)
	w.counters.removed.Add(removed)
	w.counters.freed.Add(freed)
	if removed > 0 {
		w.logger.Info("sweep pass finished",
			"removed", removed, "freed", sharedbytes.FmtMem(uint64(freed)))
	}
}
