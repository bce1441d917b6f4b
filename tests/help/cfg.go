package help

import (
	"path/filepath"
	"time"

	"github.com/transac/go-offline-cache/config"
)

// Cfg is the suite's baseline: durable store under dir, fast replay pacing,
// no snapshot persistence.
func Cfg(dir, baseURL string) *config.Config {
	cfg := config.Default()
	cfg.DB.Path = filepath.Join(dir, "offline.db")
	cfg.Transport.BaseURL = baseURL
	cfg.Transport.Timeout = 2 * time.Second
	cfg.Sync.ReplayRate = 1000
	return cfg
}

// DumpCfg is Cfg plus snapshot persistence under dir/dump.
func DumpCfg(dir, baseURL string) *config.Config {
	cfg := Cfg(dir, baseURL)
	cfg.Dump = &config.DumpCfg{
		Dir:          filepath.Join(dir, "dump"),
		Name:         "tiers",
		Gzip:         true,
		Crc32Control: true,
		MaxVersions:  3,
		Interval:     time.Hour,
	}
	return cfg
}
