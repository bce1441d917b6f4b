package config

import "time"

// TransportCfg configures the network door used for API requests,
// replayed mutations and image fetches.
type TransportCfg struct {
	// BaseURL prefixes relative endpoints, e.g. "https://api.transac.example".
	// Absolute request URLs are used as given.
	BaseURL string `yaml:"base_url" env:"OFFLINE_CACHE_BASE_URL"`

	// UserAgent is attached to every outgoing request when non-empty.
	UserAgent string `yaml:"user_agent"`

	// Timeout is handed to the default HTTP client. Zero keeps the network
	// stack's own behavior; the coordinator never imposes its own deadline.
	Timeout time.Duration `yaml:"timeout"`
}

// PreloadCfg lists what PreloadCriticalData warms after construction or
// on demand.
type PreloadCfg struct {
	// Endpoints fetched network-first to seed the api tier and the entity
	// store before the first offline period.
	Endpoints []string `yaml:"endpoints"`

	// Concurrency bounds parallel preload fetches.
	Concurrency int `yaml:"concurrency"`
}

const defaultPreloadEndpointConcurrency = 3

func (cfg *PreloadCfg) applyDefaults() {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = []string{
			"/api/v1/products",
			"/api/v1/stores",
			"/api/v1/user/profile",
		}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultPreloadEndpointConcurrency
	}
}
