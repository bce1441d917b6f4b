package config

import "time"

// Well-known cache tier names. Every cached response belongs to exactly
// one of these partitions and never moves between them.
const (
	TierStatic = "static"
	TierAPI    = "api"
	TierImages = "images"
	TierData   = "data"
)

// TierCfg is the retention policy of a single cache partition.
type TierCfg struct {
	// MaxAge is the lifetime of an entry. A read older than MaxAge is
	// treated as a miss and removes the entry.
	MaxAge time.Duration `yaml:"max_age"`

	// MaxEntries bounds the number of entries. Inserting beyond the bound
	// trims oldest-cached-first; the entry being inserted is never trimmed.
	MaxEntries int `yaml:"max_entries"`

	// MaxBytes bounds the total payload size of the partition. Zero means
	// unbounded. For the images tier the ceiling is owned by ImageCfg and
	// this field is derived from it during AdjustConfig.
	MaxBytes int64 `yaml:"max_bytes"`
}

// TiersCfg holds the four well-known partitions.
type TiersCfg struct {
	Static TierCfg `yaml:"static"`
	API    TierCfg `yaml:"api"`
	Images TierCfg `yaml:"images"`
	Data   TierCfg `yaml:"data"`
}

// Retention defaults of the marketplace client. Static assets change only
// on deploy, API listings go stale within a day, optimized images are
// content-addressed by URL and keep for a month, everything else half a day.
const (
	defaultStaticMaxAge = 7 * 24 * time.Hour
	defaultAPIMaxAge    = 24 * time.Hour
	defaultImagesMaxAge = 30 * 24 * time.Hour
	defaultDataMaxAge   = 12 * time.Hour

	defaultStaticMaxEntries = 128
	defaultAPIMaxEntries    = 256
	defaultImagesMaxEntries = 512
	defaultDataMaxEntries   = 256

	defaultStaticMaxBytes = 32 << 20
	defaultAPIMaxBytes    = 8 << 20
	defaultDataMaxBytes   = 8 << 20
)

func (cfg *TiersCfg) applyDefaults() {
	fill := func(t *TierCfg, age time.Duration, entries int, bytes int64) {
		if t.MaxAge <= 0 {
			t.MaxAge = age
		}
		if t.MaxEntries <= 0 {
			t.MaxEntries = entries
		}
		if t.MaxBytes <= 0 {
			t.MaxBytes = bytes
		}
	}
	fill(&cfg.Static, defaultStaticMaxAge, defaultStaticMaxEntries, defaultStaticMaxBytes)
	fill(&cfg.API, defaultAPIMaxAge, defaultAPIMaxEntries, defaultAPIMaxBytes)
	// the images byte bound is enforced by the image manager's ceiling,
	// not by the generic per-put trim
	fill(&cfg.Images, defaultImagesMaxAge, defaultImagesMaxEntries, -1)
	fill(&cfg.Data, defaultDataMaxAge, defaultDataMaxEntries, defaultDataMaxBytes)
	cfg.Images.MaxBytes = 0
}

// ByName returns the policy for a tier name, defaulting to the data tier
// for unknown names so a misrouted request still lands somewhere bounded.
func (cfg *TiersCfg) ByName(name string) TierCfg {
	switch name {
	case TierStatic:
		return cfg.Static
	case TierAPI:
		return cfg.API
	case TierImages:
		return cfg.Images
	default:
		return cfg.Data
	}
}
