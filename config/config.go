package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config groups configuration of all offline-cache subsystems.
// Optional subsystems (Sweep, Dump, Telemetry) can be disabled by setting them to nil;
// a NoOp implementation is substituted for each disabled one.
type Config struct {
	// Version identifies the embedding application build. When set, a change
	// against the version persisted in the store is announced as an
	// update-installed event on startup.
	Version string `yaml:"version" env:"OFFLINE_CACHE_APP_VERSION"`

	DB DBCfg `yaml:"db"`

	// Transport configures the network door: base URL of the marketplace API
	// and the default headers attached to outgoing requests.
	Transport TransportCfg `yaml:"transport"`

	// Tiers configures the four named response-cache partitions.
	// Zero values fall back to the well-known retention defaults during AdjustConfig.
	Tiers TiersCfg `yaml:"tiers"`

	// Images configures client-side image optimization and the byte ceiling
	// of the images tier.
	Images ImageCfg `yaml:"images"`

	// Sync configures the durable mutation queue and its replay pacing.
	Sync SyncCfg `yaml:"sync"`

	// Preload lists the endpoints warmed by PreloadCriticalData.
	Preload PreloadCfg `yaml:"preload"`

	// Sweep configures the periodic expired-entry sweep across tiers.
	// If nil, expired entries are only removed opportunistically on read.
	Sweep *SweepCfg `yaml:"sweep"`

	// Dump configures snapshot persistence of the cache partitions.
	// If nil, partitions are purely in-memory and do not survive a restart.
	Dump *DumpCfg `yaml:"dump"`

	// Telemetry configures the periodic usage log loop.
	// If nil, only counters are kept and nothing is logged on a schedule.
	Telemetry *TelemetryCfg `yaml:"telemetry"`
}

// AdjustConfig computes derived fields and fills retention defaults.
// It must run once after loading and before the config is handed to New.
func (cfg *Config) AdjustConfig() {
	cfg.Tiers.applyDefaults()
	cfg.Images.applyDefaults()
	cfg.Images.TargetBytes = int64(float64(cfg.Images.CeilingBytes) * cfg.Images.HysteresisCoefficient)
	cfg.Sync.applyDefaults()
	cfg.Preload.applyDefaults()
	if cfg.Sweep.Enabled() {
		cfg.Sweep.applyDefaults()
	}
	if cfg.Dump.Enabled() {
		cfg.Dump.applyDefaults()
	}
	if cfg.DB.SizeBytes <= 0 {
		cfg.DB.SizeBytes = cfg.Images.CeilingBytes +
			cfg.Tiers.Static.MaxBytes + cfg.Tiers.API.MaxBytes + cfg.Tiers.Data.MaxBytes
	}
}

// Load reads a YAML config file, applies environment overrides on top of it
// and computes derived fields.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	if err = env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	cfg.AdjustConfig()

	return cfg, nil
}

// Default returns the configuration matching the marketplace client defaults:
// the four well-known tiers, 50 KB optimization threshold, 100 MB image
// ceiling with the 80% hysteresis target, 3 replay attempts and an hourly sweep.
func Default() *Config {
	cfg := &Config{
		Sweep: &SweepCfg{},
	}
	cfg.AdjustConfig()
	return cfg
}
