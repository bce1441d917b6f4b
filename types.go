package offlinecache

import (
	"errors"

	"github.com/transac/go-offline-cache/internal/coordinator"
)

// The coordinator owns the request and event types; the root package
// re-exports them so embedding applications only ever import this one.
type (
	Response       = coordinator.Response
	RequestOptions = coordinator.RequestOptions
	Strategy       = coordinator.Strategy
	Source         = coordinator.Source
	Event          = coordinator.Event
	EventKind      = coordinator.EventKind
	StorageInfo    = coordinator.StorageInfo
	TierInfo       = coordinator.TierInfo
)

const (
	StrategyCacheFirst           = coordinator.StrategyCacheFirst
	StrategyStaleWhileRevalidate = coordinator.StrategyStaleWhileRevalidate
	StrategyNetworkFirst         = coordinator.StrategyNetworkFirst
	StrategyCacheOnly            = coordinator.StrategyCacheOnly
	StrategyNetworkOnly          = coordinator.StrategyNetworkOnly
)

const (
	SourceNetwork     = coordinator.SourceNetwork
	SourceCache       = coordinator.SourceCache
	SourceEntityStore = coordinator.SourceEntityStore
	SourceQueue       = coordinator.SourceQueue
)

const (
	EventOnline           = coordinator.EventOnline
	EventOffline          = coordinator.EventOffline
	EventSyncStarted      = coordinator.EventSyncStarted
	EventSyncCompleted    = coordinator.EventSyncCompleted
	EventMutationQueued   = coordinator.EventMutationQueued
	EventMutationFailed   = coordinator.EventMutationFailed
	EventImageEvicted     = coordinator.EventImageEvicted
	EventCacheRestored    = coordinator.EventCacheRestored
	EventUpdateInstalled  = coordinator.EventUpdateInstalled
	EventAssetIntercepted = coordinator.EventAssetIntercepted
)

// ErrNoOfflineData is returned when neither a cache tier nor the entity
// store can serve an offline read.
var ErrNoOfflineData = coordinator.ErrNoOfflineData

// ErrSyncInFlight reports a manual replay colliding with one already
// running.
var ErrSyncInFlight = errors.New("sync replay already in flight")
