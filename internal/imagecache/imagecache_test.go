package imagecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/cache"
)

type fakeFetcher struct {
	mu        sync.Mutex
	calls     int
	responses map[string][]byte
}

func (f *fakeFetcher) FetchBytes(_ context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	raw, found := f.responses[url]
	if !found {
		return nil, "", errors.New("connection refused")
	}
	return raw, "image/jpeg", nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// newTestManager keeps the optimize threshold high so payloads store verbatim
// and sizes stay predictable.
func newTestManager(fetch Fetcher, ceiling, target int64) (*Manager, *cache.TierSet) {
	tiers := cache.New(&config.Default().Tiers, slog.Default(), clock.NewMock())
	cfg := &config.ImageCfg{
		OptimizeThresholdBytes: 10 << 20,
		MaxDimensionPx:         1920,
		Quality:                0.8,
		CeilingBytes:           ceiling,
		TargetBytes:            target,
		PreloadConcurrency:     2,
	}
	return New(cfg, tiers, fetch, slog.Default()), tiers
}

// TestManager_FetchOrCache_MissThenHit verifies the second read skips the
// network.
func TestManager_FetchOrCache_MissThenHit(t *testing.T) {
	fetch := &fakeFetcher{responses: map[string][]byte{
		"/img/a.jpg": make([]byte, 2048),
	}}
	m, _ := newTestManager(fetch, 100<<20, 80<<20)

	e, _, ok := m.FetchOrCache(t.Context(), "/img/a.jpg")
	require.True(t, ok)
	require.Len(t, e.Bytes(), 2048)
	require.Equal(t, 1, fetch.callCount())

	_, _, ok = m.FetchOrCache(t.Context(), "/img/a.jpg")
	require.True(t, ok)
	require.Equal(t, 1, fetch.callCount())
}

// TestManager_FetchOrCache_FetchFailure verifies absent on a dead fetch.
func TestManager_FetchOrCache_FetchFailure(t *testing.T) {
	m, _ := newTestManager(&fakeFetcher{responses: map[string][]byte{}}, 100<<20, 80<<20)

	_, _, ok := m.FetchOrCache(t.Context(), "/img/missing.jpg")
	require.False(t, ok)
}

// TestManager_Cache_StoresMeta verifies metadata lands beside the payload.
func TestManager_Cache_StoresMeta(t *testing.T) {
	fetch := &fakeFetcher{responses: map[string][]byte{
		"/img/a.jpg": make([]byte, 4096),
	}}
	m, _ := newTestManager(fetch, 100<<20, 80<<20)

	e, _, err := m.Cache(t.Context(), "/img/a.jpg")
	require.NoError(t, err)

	meta := Meta(e)
	require.Equal(t, 4096, meta.OriginalSize)
	require.Equal(t, 4096, meta.CompressedSize)
}

// TestManager_CeilingEviction verifies the hysteresis pass drops oldest-first
// down to the target and no further.
func TestManager_CeilingEviction(t *testing.T) {
	const imgSize = 100 << 10
	fetch := &fakeFetcher{responses: map[string][]byte{}}
	for i := 0; i < 6; i++ {
		fetch.responses[fmt.Sprintf("/img/photo-%d.jpg", i)] = make([]byte, imgSize)
	}

	// Ceiling fits about five images, target about three.
	m, tiers := newTestManager(fetch, 5*imgSize+5<<10, 3*imgSize+5<<10)

	var evicted []cache.Evicted
	for i := 0; i < 6; i++ {
		_, ev, err := m.Cache(t.Context(), fmt.Sprintf("/img/photo-%d.jpg", i))
		require.NoError(t, err)
		evicted = append(evicted, ev...)
	}

	tier := tiers.Tier(config.TierImages)
	require.LessOrEqual(t, tier.Mem(), int64(3*imgSize+5<<10))
	require.NotEmpty(t, evicted)
	require.Equal(t, "/img/photo-0.jpg", evicted[0].URL)

	// Newest image always survives the pass.
	_, found := tiers.Get(config.TierImages, "/img/photo-5.jpg")
	require.True(t, found)
}

// TestManager_Preload verifies the warm-up walk caches what it can and skips
// what it cannot.
func TestManager_Preload(t *testing.T) {
	fetch := &fakeFetcher{responses: map[string][]byte{
		"/img/a.jpg": make([]byte, 1024),
		"/img/b.jpg": make([]byte, 1024),
	}}
	m, tiers := newTestManager(fetch, 100<<20, 80<<20)

	m.Preload(t.Context(), []string{"/img/a.jpg", "/img/b.jpg", "/img/broken.jpg"})

	_, found := tiers.Get(config.TierImages, "/img/a.jpg")
	require.True(t, found)
	_, found = tiers.Get(config.TierImages, "/img/b.jpg")
	require.True(t, found)
	_, found = tiers.Get(config.TierImages, "/img/broken.jpg")
	require.False(t, found)
}
