package bytes

import (
	"bytes"
	"fmt"

	"github.com/zeebo/xxh3"
)

// Equal reports whether two payloads are the same. Small slices are compared
// directly; larger ones by sampled xxh3 of head, middle and tail, which is
// enough for cache-entry dedup where payloads are derived network responses.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) < 32 {
		return bytes.Equal(a, b)
	}
	return sample(a) == sample(b)
}

// sample folds the head, middle and tail windows into one comparable hash.
func sample(p []byte) uint64 {
	mid := len(p) / 2
	return xxh3.Hash(p[:8]) ^ xxh3.Hash(p[mid:mid+8]) ^ xxh3.Hash(p[len(p)-8:])
}

// FmtMem renders a byte count as its two largest binary units ("10MB 512KB"),
// the format the telemetry lines use for tier and store sizes.
func FmtMem(n uint64) string {
	const unit = 1024
	names := [...]string{"B", "KB", "MB", "GB", "TB"}

	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit && exp < len(names)-2; m /= unit {
		div *= unit
		exp++
	}
	major := n / div
	minor := (n % div) / (div / unit)
	return fmt.Sprintf("%d%s %d%s", major, names[exp+1], minor, names[exp])
}
