package config

// ImageCfg configures client-side image optimization and the byte ceiling
// of the images tier.
type ImageCfg struct {
	// OptimizeThresholdBytes is the size below which an image is stored
	// as fetched. Only larger images are decoded and re-encoded.
	OptimizeThresholdBytes int64 `yaml:"optimize_threshold"`

	// MaxDimensionPx caps both dimensions of an optimized image; the image
	// is scaled proportionally so width and height both fit.
	MaxDimensionPx int `yaml:"max_dimension"`

	// Quality is the JPEG quality of re-encoded images in (0, 1].
	// Example: 0.8.
	Quality float64 `yaml:"quality"`

	// CeilingBytes is the hard byte ceiling of the images tier. Exceeding it
	// after a store triggers oldest-first eviction.
	CeilingBytes int64 `yaml:"ceiling"`

	// HysteresisCoefficient defines how far below the ceiling eviction drains
	// the tier, as a fraction of CeilingBytes. Evicting down to 80% instead of
	// stopping right at the ceiling keeps consecutive stores from re-triggering
	// eviction on every write.
	//
	// Example:
	//   HysteresisCoefficient: 0.80 // drain to 80 MB for a 100 MB ceiling
	HysteresisCoefficient float64 `yaml:"hysteresis_coefficient"`

	// TargetBytes is derived during initialization from CeilingBytes and
	// HysteresisCoefficient. It is not read from YAML.
	TargetBytes int64 // virtual: computed during init (bytes)

	// PreloadConcurrency bounds parallel fetches during Preload.
	PreloadConcurrency int `yaml:"preload_concurrency"`
}

const (
	defaultOptimizeThreshold  = 50 << 10
	defaultMaxDimensionPx     = 1920
	defaultImageQuality       = 0.8
	defaultImageCeilingBytes  = 100 << 20
	defaultImageHysteresis    = 0.8
	defaultPreloadConcurrency = 4
)

func (cfg *ImageCfg) applyDefaults() {
	if cfg.OptimizeThresholdBytes <= 0 {
		cfg.OptimizeThresholdBytes = defaultOptimizeThreshold
	}
	if cfg.MaxDimensionPx <= 0 {
		cfg.MaxDimensionPx = defaultMaxDimensionPx
	}
	if cfg.Quality <= 0 || cfg.Quality > 1 {
		cfg.Quality = defaultImageQuality
	}
	if cfg.CeilingBytes <= 0 {
		cfg.CeilingBytes = defaultImageCeilingBytes
	}
	if cfg.HysteresisCoefficient <= 0 || cfg.HysteresisCoefficient >= 1 {
		cfg.HysteresisCoefficient = defaultImageHysteresis
	}
	if cfg.PreloadConcurrency <= 0 {
		cfg.PreloadConcurrency = defaultPreloadConcurrency
	}
}
