package config

// SyncCfg configures the durable mutation queue and its replay behavior.
type SyncCfg struct {
	// MaxRetries is the number of failed replay attempts after which a
	// queued mutation is removed from the queue and reported through the
	// mutation-failed event.
	MaxRetries int `yaml:"max_retries"`

	// ReplayRate limits replayed requests per second so a backend that just
	// came back is not flooded by the backlog.
	// Example: 10.
	ReplayRate int `yaml:"replay_rate"`
}

const (
	defaultSyncMaxRetries = 3
	defaultReplayRate     = 10
)

func (cfg *SyncCfg) applyDefaults() {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultSyncMaxRetries
	}
	if cfg.ReplayRate <= 0 {
		cfg.ReplayRate = defaultReplayRate
	}
}
