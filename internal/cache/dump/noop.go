package dump

import "context"

// NoOpDumper stands in when snapshot persistence is disabled. The tiers are
// then purely in-memory and start cold after a restart.
type NoOpDumper struct{}

// Dump does nothing and returns nil.
func (NoOpDumper) Dump(context.Context) error {
	return nil
}

// Load restores nothing.
func (NoOpDumper) Load(context.Context) (int, error) {
	return 0, nil
}

// LoadVersion restores nothing.
func (NoOpDumper) LoadVersion(context.Context, string) (int, error) {
	return 0, nil
}

// Close does nothing and returns nil.
func (NoOpDumper) Close() error {
	return nil
}
