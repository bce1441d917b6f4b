package config

// DBCfg configures the durable key-value database backing the structured
// entity store and the sync queue, plus the overall storage budget reported
// by StorageInfo.
type DBCfg struct {
	// Path is the location of the bolt database file.
	Path string `yaml:"path" env:"OFFLINE_CACHE_DB_PATH"`

	// SizeBytes is the total storage budget used to compute StorageInfo
	// percentages. If zero it is derived from the tier byte ceilings
	// during AdjustConfig.
	SizeBytes int64 `yaml:"size"`
}
