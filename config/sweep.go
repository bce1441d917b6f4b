package config

import "time"

// SweepCfg configures the periodic expired-entry sweep across tiers.
type SweepCfg struct {
	// Interval is how often a full sweep pass runs. Expired entries are also
	// removed opportunistically whenever a read finds one, so the sweep only
	// has to catch entries nobody asks for anymore.
	Interval time.Duration `yaml:"interval"`

	// Rate limits tier scans per second within a pass.
	Rate int `yaml:"rate"`
}

const (
	defaultSweepInterval = time.Hour
	defaultSweepRate     = 100
)

func (cfg *SweepCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *SweepCfg) applyDefaults() {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.Rate <= 0 {
		cfg.Rate = defaultSweepRate
	}
}
