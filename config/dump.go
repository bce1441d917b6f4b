package config

import "time"

// DumpCfg configures snapshot persistence of the cache partitions.
// Snapshots are best-effort: a failed dump or load never affects serving.
type DumpCfg struct {
	// Dir is the base directory holding versioned snapshot directories.
	Dir string `yaml:"dir" env:"OFFLINE_CACHE_DUMP_DIR"`

	// Name prefixes snapshot file names.
	Name string `yaml:"name"`

	// Gzip compresses snapshot files.
	Gzip bool `yaml:"gzip"`

	// Crc32Control frames every entry with a checksum and skips corrupted
	// entries on load instead of failing the whole file.
	Crc32Control bool `yaml:"crc32_control"`

	// MaxVersions is how many snapshot versions are kept; older version
	// directories are removed after a successful dump.
	MaxVersions int `yaml:"max_versions"`

	// Interval between periodic dumps. A final dump also runs on Close.
	Interval time.Duration `yaml:"interval"`
}

const (
	defaultDumpName        = "tiers"
	defaultDumpMaxVersions = 3
	defaultDumpInterval    = 15 * time.Minute
)

func (cfg *DumpCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *DumpCfg) applyDefaults() {
	if cfg.Name == "" {
		cfg.Name = defaultDumpName
	}
	if cfg.MaxVersions <= 0 {
		cfg.MaxVersions = defaultDumpMaxVersions
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultDumpInterval
	}
}
