// Package cache implements the in-memory response store as four fixed
// partitions (static, api, images, data), each with its own max age and
// capacity. Hot paths keep critical sections short; sizes and counters are
// atomics so they can be read without locks.
package cache

import (
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/cache/model"
)

type TierSet struct {
	logger *slog.Logger
	clk    clock.Clock
	static *Tier
	api    *Tier
	images *Tier
	data   *Tier
}

func New(cfg *config.TiersCfg, logger *slog.Logger, clk clock.Clock) *TierSet {
	if clk == nil {
		clk = clock.New()
	}
	return &TierSet{
		logger: logger,
		clk:    clk,
		static: NewTier(config.TierStatic, cfg.Static),
		api:    NewTier(config.TierAPI, cfg.API),
		images: NewTier(config.TierImages, cfg.Images),
		data:   NewTier(config.TierData, cfg.Data),
	}
}

// Tier resolves a partition by name, falling back to the data tier for
// anything unrecognized.
func (s *TierSet) Tier(name string) *Tier {
	switch name {
	case config.TierStatic:
		return s.static
	case config.TierAPI:
		return s.api
	case config.TierImages:
		return s.images
	case config.TierData:
		return s.data
	default:
		return s.data
	}
}

func (s *TierSet) Get(tier, url string) (*model.Entry, bool) {
	return s.Tier(tier).Get(url, s.now())
}

func (s *TierSet) Put(tier, url string, b model.Body) *model.Entry {
	return s.Tier(tier).Put(url, b, s.now())
}

func (s *TierSet) Delete(tier, url string) bool {
	return s.Tier(tier).Delete(url)
}

// Each visits the partitions in a stable order.
func (s *TierSet) Each(fn func(t *Tier)) {
	fn(s.static)
	fn(s.api)
	fn(s.images)
	fn(s.data)
}

// SweepExpired removes aged-out entries from every partition.
func (s *TierSet) SweepExpired(pace func()) (removed, freed int64) {
	now := s.now()
	s.Each(func(t *Tier) {
		r, f := t.SweepExpired(now, pace)
		removed += r
		freed += f
	})
	return removed, freed
}

func (s *TierSet) Clear() {
	s.Each(func(t *Tier) { t.Clear() })
	s.logger.Info("cache tiers cleared")
}

func (s *TierSet) Len() (total int64) {
	s.Each(func(t *Tier) { total += t.Len() })
	return total
}

func (s *TierSet) Mem() (total int64) {
	s.Each(func(t *Tier) { total += t.Mem() })
	return total
}

func (s *TierSet) Stats() []TierStats {
	out := make([]TierStats, 0, 4)
	s.Each(func(t *Tier) { out = append(out, t.Stats()) })
	return out
}

func (s *TierSet) now() int64 { return s.clk.Now().UnixNano() }
