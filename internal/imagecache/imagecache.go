// Package imagecache manages the images partition: fetch, shrink through the
// optimizer, store, then hold the partition under its byte ceiling.
package imagecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/cache"
	"github.com/transac/go-offline-cache/internal/cache/model"
	"github.com/transac/go-offline-cache/internal/imaging"
	sharedbytes "github.com/transac/go-offline-cache/internal/shared/bytes"
)

// Fetcher pulls raw image bytes off the network.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, string, error)
}

type Manager struct {
	cfg    *config.ImageCfg
	tiers  *cache.TierSet
	opt    *imaging.Optimizer
	fetch  Fetcher
	logger *slog.Logger
}

func New(cfg *config.ImageCfg, tiers *cache.TierSet, fetch Fetcher, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		tiers:  tiers,
		opt:    imaging.New(cfg, logger),
		fetch:  fetch,
		logger: logger,
	}
}

// Cache fetches url unconditionally, optimizes and stores it. It returns the
// stored entry plus whatever the ceiling pass evicted to make room.
func (m *Manager) Cache(ctx context.Context, url string) (*model.Entry, []cache.Evicted, error) {
	raw, contentType, err := m.fetch.FetchBytes(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch image: %w", err)
	}

	res := m.opt.Optimize(url, raw, contentType)
	if res.Optimized {
		m.logger.Debug("image optimized",
			"url", url,
			"originalSize", res.Meta.OriginalSize,
			"compressedSize", res.Meta.CompressedSize,
			"width", res.Meta.Width, "height", res.Meta.Height)
	}

	entry := m.tiers.Put(config.TierImages, url, model.Body{
		Bytes:       res.Bytes,
		ContentType: res.ContentType,
		Meta:        res.Meta.ToMap(),
	})
	return entry, m.enforceCeiling(), nil
}

// FetchOrCache returns the cached image, fetching and storing it on a miss.
// ok is false only when the image is not cached and the fetch itself failed.
func (m *Manager) FetchOrCache(ctx context.Context, url string) (*model.Entry, []cache.Evicted, bool) {
	if e, found := m.tiers.Get(config.TierImages, url); found {
		return e, nil, true
	}

	e, evicted, err := m.Cache(ctx, url)
	if err != nil {
		m.logger.Debug("image fetch failed", "url", url, "error", err)
		return nil, nil, false
	}
	return e, evicted, true
}

// Preload warms the partition, a few urls in flight at a time. Individual
// failures are skipped; a cancelled context stops the walk.
func (m *Manager) Preload(ctx context.Context, urls []string) []cache.Evicted {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency())

	var (
		mu      sync.Mutex
		evicted []cache.Evicted
	)
	for _, url := range urls {
		url := url
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, ev, ok := m.FetchOrCache(ctx, url); ok && len(ev) > 0 {
				mu.Lock()
				evicted = append(evicted, ev...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return evicted
}

// Meta returns the stored metadata of a cached image entry.
func Meta(e *model.Entry) imaging.Meta {
	return imaging.MetaFromMap(e.Body().Meta)
}

/**
 * Private API.
 */

// enforceCeiling holds the images partition under its byte ceiling: once
// resident bytes exceed it, oldest entries go in one pass until usage drops
// to the hysteresis target.
func (m *Manager) enforceCeiling() []cache.Evicted {
	tier := m.tiers.Tier(config.TierImages)
	if m.cfg.CeilingBytes <= 0 || tier.Mem() <= m.cfg.CeilingBytes {
		return nil
	}

	evicted := tier.EnforceByteCeiling(m.cfg.TargetBytes)
	if len(evicted) > 0 {
		var freed int64
		for _, ev := range evicted {
			freed += ev.Bytes
		}
		m.logger.Info("image ceiling enforced",
			"evicted", len(evicted),
			"freed", sharedbytes.FmtMem(uint64(freed)),
			"resident", sharedbytes.FmtMem(uint64(tier.Mem())))
	}
	return evicted
}

func (m *Manager) concurrency() int {
	if m.cfg.PreloadConcurrency > 0 {
		return m.cfg.PreloadConcurrency
	}
	return 1
}
