package coordinator

import (
	"errors"
	"time"
)

// ErrNoOfflineData is returned when every fallback (cache tier, entity
// store) is exhausted for an offline read.
var ErrNoOfflineData = errors.New("no offline data available")

// Strategy picks how a read balances the cache against the network.
type Strategy string

const (
	// StrategyCacheFirst serves the cached entry when present, otherwise
	// falls through to the network. The default.
	StrategyCacheFirst Strategy = "cache-first"
	// StrategyStaleWhileRevalidate behaves like cache-first but refreshes a
	// served entry in the background.
	StrategyStaleWhileRevalidate Strategy = "stale-while-revalidate"
	// StrategyNetworkFirst tries the network and falls back to cached data.
	StrategyNetworkFirst Strategy = "network-first"
	// StrategyCacheOnly never touches the network.
	StrategyCacheOnly Strategy = "cache-only"
	// StrategyNetworkOnly bypasses cache reads but still writes through.
	StrategyNetworkOnly Strategy = "network-only"
)

// Source names where a response was served from.
type Source string

const (
	SourceNetwork     Source = "network"
	SourceCache       Source = "cache"
	SourceEntityStore Source = "entity-store"
	SourceQueue       Source = "queue"
)

// RequestOptions tune a single request.
type RequestOptions struct {
	// Strategy defaults to cache-first when empty.
	Strategy Strategy
	// Tier overrides the endpoint-derived cache partition.
	Tier string
	// Revalidate asks cache-first to refresh a served entry in the
	// background, same as the stale-while-revalidate strategy.
	Revalidate bool
	// Headers are passed through to outbound network requests.
	Headers map[string]string
}

// Response is what a coordinated request hands back to the UI.
type Response struct {
	Success     bool
	Status      int
	Data        []byte
	ContentType string

	// FromCache marks responses served without touching the network.
	FromCache bool
	// Queued marks optimistic mutation responses: the change is durably
	// queued and will replay once connectivity returns.
	Queued bool

	// CachedAt is the store time of the served entry, when FromCache.
	CachedAt time.Time
	// LastUpdated is the staleness stamp of entity-store fallbacks: the
	// newest lastUpdated across the records that built the payload.
	LastUpdated time.Time

	Source Source
}
