package sweeper

import "context"

// NoOpSweeper stands in when the sweep is disabled. Expired entries are then
// only removed when a read finds them.
type NoOpSweeper struct{}

// SweeperMetrics always returns zero values.
func (NoOpSweeper) SweeperMetrics() (scans, removed, freed int64) {
	return 0, 0, 0
}

// ForceSweep does nothing and returns nil.
func (NoOpSweeper) ForceSweep(context.Context) error {
	return nil
}

// Close does nothing and returns nil.
func (NoOpSweeper) Close() error {
	return nil
}
