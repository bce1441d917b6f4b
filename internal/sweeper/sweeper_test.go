package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/cache"
	"github.com/transac/go-offline-cache/internal/cache/model"
)

func newTierSet(clk clock.Clock) *cache.TierSet {
	cfg := config.Default()
	return cache.New(&cfg.Tiers, slog.Default(), clk)
}

// TestSweepWorker_ForceSweep removes expired entries on demand and leaves
// live ones alone.
func TestSweepWorker_ForceSweep(t *testing.T) {
	clk := clock.NewMock()
	tiers := newTierSet(clk)

	tiers.Put(config.TierAPI, "/api/v1/products", model.Body{Bytes: []byte(`[]`)})
	tiers.Put(config.TierAPI, "/api/v1/stores", model.Body{Bytes: []byte(`[]`)})
	tiers.Put(config.TierStatic, "/app.js", model.Body{Bytes: []byte("js")})

	sw := New(t.Context(), &config.SweepCfg{Interval: time.Hour, Rate: 1000}, slog.Default(), tiers, clk)
	defer func() { _ = sw.Close() }()

	clk.Add(25 * time.Hour) // api entries age out, static keeps for a week

	require.NoError(t, sw.ForceSweep(t.Context()))

	scans, removed, freed := sw.SweeperMetrics()
	require.EqualValues(t, 1, scans)
	require.EqualValues(t, 2, removed)
	require.Greater(t, freed, int64(0))

	_, found := tiers.Get(config.TierStatic, "/app.js")
	require.True(t, found)
	require.EqualValues(t, 1, tiers.Len())
}

// TestSweepWorker_PeriodicPass runs a pass when the interval elapses.
func TestSweepWorker_PeriodicPass(t *testing.T) {
	clk := clock.NewMock()
	tiers := newTierSet(clk)
	tiers.Put(config.TierData, "/orders", model.Body{Bytes: []byte(`[]`)})

	sw := New(t.Context(), &config.SweepCfg{Interval: time.Hour, Rate: 1000}, slog.Default(), tiers, clk)
	defer func() { _ = sw.Close() }()

	time.Sleep(20 * time.Millisecond) // let the worker arm its ticker
	clk.Add(13 * time.Hour)           // data entries live 12h

	require.Eventually(t, func() bool {
		scans, removed, _ := sw.SweeperMetrics()
		return scans >= 1 && removed == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Zero(t, tiers.Len())
}

// TestSweepWorker_ForceSweepAfterClose fails with the worker's context error
// once the worker goroutine has wound down.
func TestSweepWorker_ForceSweepAfterClose(t *testing.T) {
	clk := clock.NewMock()
	sw := New(t.Context(), &config.SweepCfg{Interval: time.Hour, Rate: 1000}, slog.Default(), newTierSet(clk), clk)

	require.NoError(t, sw.Close())
	require.Eventually(t, func() bool {
		return errors.Is(sw.ForceSweep(t.Context()), context.Canceled)
	}, 2*time.Second, 10*time.Millisecond)
}

// TestNew_DisabledReturnsNoOp substitutes the no-op when cfg is nil.
func TestNew_DisabledReturnsNoOp(t *testing.T) {
	clk := clock.NewMock()
	sw := New(t.Context(), nil, slog.Default(), newTierSet(clk), clk)

	_, isNoOp := sw.(*NoOpSweeper)
	require.True(t, isNoOp)

	scans, removed, freed := sw.SweeperMetrics()
	require.Zero(t, scans)
	require.Zero(t, removed)
	require.Zero(t, freed)
	require.NoError(t, sw.ForceSweep(t.Context()))
	require.NoError(t, sw.Close())
}
