// Package coordinator routes every UI request through the offline layer: it
// picks the cache partition, applies the requested strategy, falls back to
// the entity store when offline, and hands mutations that cannot complete to
// the durable sync queue.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/cache"
	"github.com/transac/go-offline-cache/internal/cache/model"
	"github.com/transac/go-offline-cache/internal/entitystore"
	"github.com/transac/go-offline-cache/internal/imagecache"
	"github.com/transac/go-offline-cache/internal/kvstore"
	"github.com/transac/go-offline-cache/internal/netmon"
	"github.com/transac/go-offline-cache/internal/syncqueue"
	"github.com/transac/go-offline-cache/internal/transport"
)

// Deps are the collaborators a Coordinator drives. All of them are required
// except Notify and Clock.
type Deps struct {
	Tiers    *cache.TierSet
	Entities *entitystore.Store
	Images   *imagecache.Manager
	Queue    *syncqueue.Queue
	Door     *transport.Client
	Monitor  *netmon.Monitor
	KV       *kvstore.Store
	Clock    clock.Clock
	// Notify posts a status event toward the foreground context. Never
	// called concurrently with itself for the same request; must not block.
	Notify func(Event)
}

// Coordinator respects given ctx: background revalidations it spawns die
// with it.
type Coordinator struct {
	ctx      context.Context
	cfg      *config.Config
	logger   *slog.Logger
	clk      clock.Clock
	tiers    *cache.TierSet
	entities *entitystore.Store
	images   *imagecache.Manager
	queue    *syncqueue.Queue
	door     *transport.Client
	mon      *netmon.Monitor
	kv       *kvstore.Store
	notify   func(Event)

	inflight sync.Map // endpoint -> struct{}: one background refresh per url
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps Deps) *Coordinator {
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	notify := deps.Notify
	if notify == nil {
		notify = func(Event) {}
	}
	return &Coordinator{
		ctx:      ctx,
		cfg:      cfg,
		logger:   logger,
		clk:      clk,
		tiers:    deps.Tiers,
		entities: deps.Entities,
		images:   deps.Images,
		queue:    deps.Queue,
		door:     deps.Door,
		mon:      deps.Monitor,
		kv:       deps.KV,
		notify:   notify,
	}
}

// Get serves a read through the strategy decision procedure.
func (c *Coordinator) Get(ctx context.Context, endpoint string, opts RequestOptions) (Response, error) {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyCacheFirst
	}
	tier := opts.Tier
	if tier == "" {
		tier = TierFor(endpoint)
	}

	// Offline, and cache-only by choice, read the same way.
	if strategy == StrategyCacheOnly || !c.mon.Online() {
		return c.fromOffline(ctx, endpoint, tier)
	}

	switch strategy {
	case StrategyNetworkOnly:
		resp, err := c.fromNetwork(ctx, endpoint, tier, opts.Headers)
		if err != nil {
			return Response{}, fmt.Errorf("network-only fetch: %w", err)
		}
		return resp, nil

	case StrategyNetworkFirst:
		resp, err := c.fromNetwork(ctx, endpoint, tier, opts.Headers)
		if err == nil {
			return resp, nil
		}
		c.logger.Debug("network failed, falling back to offline data", "endpoint", endpoint, "error", err)
		return c.fromOffline(ctx, endpoint, tier)

	default: // cache-first, with or without revalidation
		if e, found := c.tiers.Get(tier, endpoint); found {
			if strategy == StrategyStaleWhileRevalidate || opts.Revalidate {
				c.revalidate(endpoint, tier, opts.Headers)
			}
			return c.cacheResponse(e), nil
		}
		resp, err := c.fromNetwork(ctx, endpoint, tier, opts.Headers)
		if err == nil {
			return resp, nil
		}
		c.logger.Debug("network failed after cache miss", "endpoint", endpoint, "error", err)
		return c.fromOffline(ctx, endpoint, tier)
	}
}

// Mutate issues a write. Offline, the mutation goes straight to the sync
// queue with an optimistic response; online, it is only queued when the
// exchange itself fails. A server error status is an answer, not a failure,
// and is returned as is.
func (c *Coordinator) Mutate(ctx context.Context, method, endpoint string, payload []byte, opts RequestOptions) (Response, error) {
	if !c.mon.Online() {
		return c.queueMutation(ctx, method, endpoint, payload, opts.Headers)
	}

	reply, err := c.door.Do(ctx, method, endpoint, payload, opts.Headers)
	if err != nil {
		c.logger.Debug("mutation failed on the wire, queueing", "method", method, "endpoint", endpoint, "error", err)
		return c.queueMutation(ctx, method, endpoint, payload, opts.Headers)
	}

	if reply.OK() {
		c.afterMutation(ctx, method, endpoint, reply)
	}
	return Response{
		Success:     reply.OK(),
		Status:      reply.Status,
		Data:        reply.Bytes,
		ContentType: reply.ContentType,
		Source:      SourceNetwork,
	}, nil
}

// EnqueueMutation hands a write straight to the sync queue without trying
// the network first. The interceptor calls it once its own exchange has
// already failed.
func (c *Coordinator) EnqueueMutation(ctx context.Context, method, endpoint string, payload []byte, headers map[string]string) (Response, error) {
	return c.queueMutation(ctx, method, endpoint, payload, headers)
}

// ReplayAll drains the sync queue once. Items dropped after their retry
// budget are reported through the event channel; nothing else learns of the
// loss.
func (c *Coordinator) ReplayAll(ctx context.Context) syncqueue.ReplayResult {
	res := c.queue.ReplayAll(ctx, c.sendQueued)
	if res.Skipped {
		return res
	}
	for _, item := range res.Dropped {
		c.notify(Event{
			Kind:     EventMutationFailed,
			Endpoint: item.Endpoint,
			ItemID:   item.ID,
			At:       c.clk.Now(),
		})
	}
	return res
}

// PreloadCriticalData warms the configured endpoints so first paint works
// offline. Best effort: individual endpoint failures are logged and skipped.
func (c *Coordinator) PreloadCriticalData(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.preloadConcurrency())

	for _, endpoint := range c.cfg.Preload.Endpoints {
		endpoint := endpoint
		g.Go(func() error {
			if _, err := c.Get(ctx, endpoint, RequestOptions{Strategy: StrategyNetworkFirst}); err != nil {
				c.logger.Warn("preload endpoint failed", "endpoint", endpoint, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// PreloadImages warms the images partition.
func (c *Coordinator) PreloadImages(ctx context.Context, urls []string) {
	c.notifyEvicted(c.images.Preload(ctx, urls))
}

// ClearCache drops every response-cache partition. Entity records and queued
// mutations survive: they are user data, not derived responses.
func (c *Coordinator) ClearCache() {
	c.tiers.Clear()
}

// TierInfo is the per-partition slice of StorageInfo.
type TierInfo struct {
	Name    string
	Entries int64
	Bytes   int64
}

// StorageInfo reports resident usage against the configured budget.
type StorageInfo struct {
	UsedBytes      int64
	AvailableBytes int64
	UsedPercent    float64
	Tiers          []TierInfo
	QueueDepth     int
	DBBytes        int64
}

func (c *Coordinator) StorageInfo(ctx context.Context) StorageInfo {
	info := StorageInfo{DBBytes: c.kv.SizeBytes()}
	for _, st := range c.tiers.Stats() {
		info.Tiers = append(info.Tiers, TierInfo{Name: st.Name, Entries: st.Entries, Bytes: st.Bytes})
		info.UsedBytes += st.Bytes
	}
	info.UsedBytes += info.DBBytes

	if depth, err := c.queue.Len(ctx); err == nil {
		info.QueueDepth = depth
	}

	quota := c.cfg.DB.SizeBytes
	if quota > 0 {
		info.AvailableBytes = quota - info.UsedBytes
		if info.AvailableBytes < 0 {
			info.AvailableBytes = 0
		}
		info.UsedPercent = float64(info.UsedBytes) / float64(quota) * 100
		if info.UsedPercent > 100 {
			info.UsedPercent = 100
		}
	}
	return info
}

/**
 * Private API.
 */

// fromNetwork fetches endpoint and writes successful responses through to
// the cache and, for entity-listing endpoints, the entity store. Image
// endpoints run the optimize pipeline instead of raw write-through.
func (c *Coordinator) fromNetwork(ctx context.Context, endpoint, tier string, headers map[string]string) (Response, error) {
	if tier == config.TierImages {
		e, evicted, err := c.images.Cache(ctx, endpoint)
		if err != nil {
			return Response{}, err
		}
		c.notifyEvicted(evicted)
		b := e.Body()
		return Response{
			Success:     true,
			Status:      http.StatusOK,
			Data:        b.Bytes,
			ContentType: b.ContentType,
			Source:      SourceNetwork,
		}, nil
	}

	reply, err := c.door.Get(ctx, endpoint, headers)
	if err != nil {
		return Response{}, err
	}
	if reply.OK() {
		c.storeReply(ctx, endpoint, tier, reply)
	}
	return Response{
		Success:     reply.OK(),
		Status:      reply.Status,
		Data:        reply.Bytes,
		ContentType: reply.ContentType,
		Source:      SourceNetwork,
	}, nil
}

// fromOffline serves a read without the network: tier lookup first, then the
// entity store for recognized endpoints.
func (c *Coordinator) fromOffline(ctx context.Context, endpoint, tier string) (Response, error) {
	if e, found := c.tiers.Get(tier, endpoint); found {
		return c.cacheResponse(e), nil
	}

	ref, listable := entityRefFor(endpoint)
	if !listable {
		return Response{}, ErrNoOfflineData
	}

	if ref.id != "" {
		rec, err := c.entities.Get(ctx, ref.collection, ref.id)
		if err != nil {
			return Response{}, ErrNoOfflineData
		}
		return c.entityResponse(rec.Data, rec.LastUpdated), nil
	}

	recs, lastUpdated, err := c.entities.GetAll(ctx, ref.collection)
	if err != nil {
		// Storage trouble is a cache miss, never a surfaced failure.
		c.logger.Warn("entity store read failed", "collection", ref.collection, "error", err)
		return Response{}, ErrNoOfflineData
	}
	if len(recs) == 0 {
		return Response{}, ErrNoOfflineData
	}

	payload, err := entitystore.Reassemble(ref.collection, recs)
	if err != nil || payload == nil {
		return Response{}, ErrNoOfflineData
	}
	return c.entityResponse(payload, lastUpdated), nil
}

// storeReply writes a successful response into its tier and decomposes
// recognized entity payloads into the entity store.
func (c *Coordinator) storeReply(ctx context.Context, endpoint, tier string, reply transport.Reply) {
	c.tiers.Put(tier, endpoint, model.Body{Bytes: reply.Bytes, ContentType: reply.ContentType})

	ref, listable := entityRefFor(endpoint)
	if !listable {
		return
	}

	if ref.id != "" && ref.collection != entitystore.UserData {
		if rec, ok := entitystore.DecomposeDetail(reply.Bytes, c.clk.Now()); ok {
			if err := c.entities.Put(ctx, ref.collection, rec); err != nil {
				c.logger.Warn("entity write failed", "collection", ref.collection, "error", err)
			}
		}
		return
	}

	recs := entitystore.Decompose(ref.collection, reply.Bytes, c.clk.Now())
	if len(recs) == 0 {
		return
	}
	if err := c.entities.PutAll(ctx, ref.collection, recs); err != nil {
		c.logger.Warn("entity batch write failed", "collection", ref.collection, "error", err)
	}
}

// queueMutation hands the write to the sync queue and synthesizes the
// optimistic response.
func (c *Coordinator) queueMutation(ctx context.Context, method, endpoint string, payload []byte, headers map[string]string) (Response, error) {
	item, err := c.queue.Enqueue(ctx, actionFor(method), endpoint, payload, headers)
	if err != nil {
		// Unlike cache writes, a lost mutation is real user data: surface it.
		return Response{}, fmt.Errorf("queue mutation: %w", err)
	}

	c.notify(Event{Kind: EventMutationQueued, Endpoint: endpoint, ItemID: item.ID, At: c.clk.Now()})
	return Response{
		Success: true,
		Queued:  true,
		Status:  http.StatusAccepted,
		Source:  SourceQueue,
	}, nil
}

// sendQueued replays one queued mutation. Only a failed exchange counts as a
// replay failure; any server answer completes the item.
func (c *Coordinator) sendQueued(ctx context.Context, item syncqueue.Item) error {
	method := methodFor(item.Action)
	reply, err := c.door.Do(ctx, method, item.Endpoint, item.Payload, item.Headers)
	if err != nil {
		return err
	}
	if reply.OK() {
		c.afterMutation(ctx, method, item.Endpoint, reply)
	}
	return nil
}

// afterMutation invalidates the cached responses the write made stale and
// folds the returned entity into the store.
func (c *Coordinator) afterMutation(ctx context.Context, method, endpoint string, reply transport.Reply) {
	tier := TierFor(endpoint)
	c.tiers.Delete(tier, endpoint)

	ref, listable := entityRefFor(endpoint)
	if !listable {
		return
	}
	if ref.id != "" {
		if parent := strings.TrimSuffix(pathOnly(endpoint), "/"+ref.id); parent != pathOnly(endpoint) {
			c.tiers.Delete(TierFor(parent), parent)
		}
	}

	if method == http.MethodDelete {
		if ref.id != "" {
			if err := c.entities.Delete(ctx, ref.collection, ref.id); err != nil {
				c.logger.Warn("entity delete failed", "collection", ref.collection, "id", ref.id, "error", err)
			}
		}
		return
	}

	if ref.collection == entitystore.UserData {
		// The profile document carries no id of its own.
		for _, rec := range entitystore.Decompose(entitystore.UserData, reply.Bytes, c.clk.Now()) {
			if err := c.entities.Put(ctx, ref.collection, rec); err != nil {
				c.logger.Warn("entity write failed", "collection", ref.collection, "error", err)
			}
		}
		return
	}
	if rec, ok := entitystore.DecomposeDetail(reply.Bytes, c.clk.Now()); ok {
		if err := c.entities.Put(ctx, ref.collection, rec); err != nil {
			c.logger.Warn("entity write failed", "collection", ref.collection, "error", err)
		}
	}
}

// revalidate refreshes endpoint in the background, at most once in flight
// per url. The caller is never awaited; the refresh lives on the
// coordinator's own context.
func (c *Coordinator) revalidate(endpoint, tier string, headers map[string]string) {
	if _, loaded := c.inflight.LoadOrStore(endpoint, struct{}{}); loaded {
		return
	}
	go func() {
		defer c.inflight.Delete(endpoint)
		if _, err := c.fromNetwork(c.ctx, endpoint, tier, headers); err != nil {
			c.logger.Debug("background revalidation failed", "endpoint", endpoint, "error", err)
		}
	}()
}

func (c *Coordinator) cacheResponse(e *model.Entry) Response {
	b := e.Body()
	return Response{
		Success:     true,
		Status:      http.StatusOK,
		Data:        b.Bytes,
		ContentType: b.ContentType,
		FromCache:   true,
		CachedAt:    time.Unix(0, e.CachedAt()),
		Source:      SourceCache,
	}
}

func (c *Coordinator) entityResponse(payload []byte, lastUpdated time.Time) Response {
	return Response{
		Success:     true,
		Status:      http.StatusOK,
		Data:        payload,
		ContentType: "application/json",
		FromCache:   true,
		LastUpdated: lastUpdated,
		Source:      SourceEntityStore,
	}
}

func (c *Coordinator) notifyEvicted(evicted []cache.Evicted) {
	for _, ev := range evicted {
		c.notify(Event{Kind: EventImageEvicted, Endpoint: ev.URL, Bytes: ev.Bytes, At: c.clk.Now()})
	}
}

func (c *Coordinator) preloadConcurrency() int {
	if c.cfg.Preload.Concurrency > 0 {
		return c.cfg.Preload.Concurrency
	}
	return 1
}

func actionFor(method string) syncqueue.Action {
	switch method {
	case http.MethodPut, http.MethodPatch:
		return syncqueue.ActionUpdate
	case http.MethodDelete:
		return syncqueue.ActionDelete
	default:
		return syncqueue.ActionCreate
	}
}

func methodFor(action syncqueue.Action) string {
	switch action {
	case syncqueue.ActionUpdate:
		return http.MethodPut
	case syncqueue.ActionDelete:
		return http.MethodDelete
	default:
		return http.MethodPost
	}
}
