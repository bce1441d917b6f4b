package coordinator

import "time"

// EventKind names a status message posted to the foreground context.
type EventKind string

const (
	EventOnline  EventKind = "network.online"
	EventOffline EventKind = "network.offline"

	EventSyncStarted   EventKind = "sync.started"
	EventSyncCompleted EventKind = "sync.completed"

	EventMutationQueued EventKind = "mutation.queued"
	// EventMutationFailed reports a mutation dropped after its replay budget
	// was spent. Subscribers are the only ones who learn about the loss.
	EventMutationFailed EventKind = "mutation.failed"

	EventImageEvicted     EventKind = "image.evicted"
	EventCacheRestored    EventKind = "cache.restored"
	EventUpdateInstalled  EventKind = "update.installed"
	EventAssetIntercepted EventKind = "asset.intercepted"
)

// Event is one status message. Fields beyond Kind are populated where they
// make sense: Endpoint for request-scoped events, ItemID for queue items,
// Bytes for eviction sizes.
type Event struct {
	Kind     EventKind
	Endpoint string
	ItemID   string
	Bytes    int64
	Count    int
	At       time.Time
}
