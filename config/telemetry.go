package config

import "time"

// TelemetryCfg configures the periodic usage log loop.
type TelemetryCfg struct {
	// LogsInterval is how often usage lines are emitted.
	LogsInterval time.Duration `yaml:"logs_interval"`
}

const defaultTelemetryLogsInterval = 5 * time.Minute

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}

// Interval returns the configured interval or the default when unset.
func (cfg *TelemetryCfg) Interval() time.Duration {
	if cfg == nil || cfg.LogsInterval <= 0 {
		return defaultTelemetryLogsInterval
	}
	return cfg.LogsInterval
}
