// Package offlinecache is the offline-first data layer of the marketplace
// client: a tiered response cache with entity-store fallback, durable
// mutation queue with replay, image optimization under a byte ceiling, and
// request strategies from cache-first to network-only. The Client wires the
// whole stack together; embedding applications feed it connectivity signals
// and read status events back.
package offlinecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/cache"
	"github.com/transac/go-offline-cache/internal/cache/dump"
	"github.com/transac/go-offline-cache/internal/coordinator"
	"github.com/transac/go-offline-cache/internal/entitystore"
	"github.com/transac/go-offline-cache/internal/imagecache"
	"github.com/transac/go-offline-cache/internal/interceptor"
	"github.com/transac/go-offline-cache/internal/kvstore"
	"github.com/transac/go-offline-cache/internal/netmon"
	"github.com/transac/go-offline-cache/internal/sweeper"
	"github.com/transac/go-offline-cache/internal/syncqueue"
	"github.com/transac/go-offline-cache/internal/telemetry"
	"github.com/transac/go-offline-cache/internal/transport"
)

const (
	// eventBuffer holds status events until the foreground drains them.
	eventBuffer = 64
	// signalRing bounds the connectivity signals waiting for the actor.
	signalRing = 64
)

var versionKey = []byte("app_version")

type Client struct {
	ctx    context.Context
	cls    context.CancelFunc
	cfg    *config.Config
	logger *slog.Logger
	clk    clock.Clock

	kv    *kvstore.Store
	tiers *cache.TierSet
	mon   *netmon.Monitor
	co    *coordinator.Coordinator
	rt    *interceptor.Transport
	actor *interceptor.Actor

	sweep  sweeper.Sweeper
	logs   telemetry.Logger
	dumper dump.Dumper

	events   chan Event
	evMu     sync.RWMutex
	evClosed bool

	unsub    func()
	wg       sync.WaitGroup
	closing  sync.Once
	closeErr error
}

// New opens the offline store, restores the last cache snapshot and starts
// the background workers. The client owns everything it builds; Close stops
// the workers, writes a final snapshot and releases the database.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &options{}
	for _, apply := range opts {
		apply(o)
	}
	clk := o.clk
	if clk == nil {
		clk = clock.New()
	}

	kv, err := kvstore.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("open offline database: %w", err)
	}

	var metrics *telemetry.Metrics
	if o.registry != nil {
		metrics, err = telemetry.NewMetrics(o.registry)
		if err != nil {
			_ = kv.Close()
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)

	tiers := cache.New(&cfg.Tiers, logger, clk)
	door := transport.New(&cfg.Transport, o.httpClient, logger)
	images := imagecache.New(&cfg.Images, tiers, door, logger)
	entities := entitystore.New(kv, logger)
	queue := syncqueue.New(ctx, kv, &cfg.Sync, logger, clk)
	mon := netmon.New(logger)

	c := &Client{
		ctx:    ctx,
		cls:    cancel,
		cfg:    cfg,
		logger: logger,
		clk:    clk,
		kv:     kv,
		tiers:  tiers,
		mon:    mon,
		events: make(chan Event, eventBuffer),
	}

	c.co = coordinator.New(ctx, cfg, logger, coordinator.Deps{
		Tiers:    tiers,
		Entities: entities,
		Images:   images,
		Queue:    queue,
		Door:     door,
		Monitor:  mon,
		KV:       kv,
		Clock:    clk,
		Notify:   c.publish,
	})
	c.rt = interceptor.NewTransport(c.co, mon, innerTransport(o.httpClient), clk, logger, c.publish)
	c.actor = interceptor.NewActor(logger, clk, signalRing)
	c.sweep = sweeper.New(ctx, cfg.Sweep, logger, tiers, clk)
	c.logs = telemetry.New(ctx, cfg, logger, clk, tiers, c.sweep, queue, metrics)
	c.dumper = dump.New(ctx, cfg.Dump, tiers, clk)

	c.restoreSnapshot(ctx)
	c.announceVersion(ctx)

	netCh, unsub := mon.Subscribe()
	c.unsub = unsub
	c.wg.Add(3)
	go func() {
		defer c.wg.Done()
		c.actor.Run(ctx)
	}()
	go c.relaySignals(netCh)
	go c.foreground()

	return c, nil
}

// Close stops the background workers, writes a final cache snapshot and
// closes the offline database. Safe to call more than once.
func (c *Client) Close() error {
	c.closing.Do(func() {
		c.unsub()
		c.cls()
		c.wg.Wait()

		c.evMu.Lock()
		c.evClosed = true
		c.evMu.Unlock()
		close(c.events)

		c.closeErr = errors.Join(
			c.logs.Close(),
			c.sweep.Close(),
			c.dumper.Close(),
			c.kv.Close(),
		)
	})
	return c.closeErr
}

/**
 * Private API.
 */

// restoreSnapshot reloads the newest dump into the tiers. A missing or
// damaged snapshot only costs a cold start.
func (c *Client) restoreSnapshot(ctx context.Context) {
	restored, err := c.dumper.Load(ctx)
	if err != nil {
		c.logger.Debug("no cache snapshot restored", "error", err)
		return
	}
	if restored > 0 {
		c.publish(Event{Kind: EventCacheRestored, Count: restored, At: c.clk.Now()})
	}
}

// announceVersion posts an update-installed event when the embedding
// application build changed since the previous run.
func (c *Client) announceVersion(ctx context.Context) {
	if c.cfg.Version == "" {
		return
	}

	prev, err := c.kv.Get(ctx, kvstore.BucketMeta, versionKey)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		c.logger.Warn("read stored app version", "error", err)
		return
	}
	if string(prev) == c.cfg.Version {
		return
	}
	if err := c.kv.Put(ctx, kvstore.BucketMeta, versionKey, []byte(c.cfg.Version)); err != nil {
		c.logger.Warn("persist app version", "error", err)
		return
	}
	if len(prev) > 0 {
		c.publish(Event{Kind: EventUpdateInstalled, At: c.clk.Now()})
	}
}

// relaySignals forwards connectivity transitions into the actor's ring. An
// online edge additionally posts a sync opportunity, which is what drives
// the one replay per transition.
func (c *Client) relaySignals(ch <-chan bool) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case online := <-ch:
			c.actor.Post(interceptor.SignalStatusChange, online)
			if online {
				c.actor.Post(interceptor.SignalSyncOpportunity, online)
			}
		}
	}
}

// foreground consumes the actor's outbound channel, re-emits public events
// and runs queued-mutation replays. It exits when the actor closes the
// channel on shutdown.
func (c *Client) foreground() {
	defer c.wg.Done()
	for msg := range c.actor.Messages() {
		switch msg.Signal {
		case interceptor.SignalStatusChange:
			kind := EventOffline
			if msg.Online {
				kind = EventOnline
			}
			c.publish(Event{Kind: kind, At: msg.At})
		case interceptor.SignalSyncOpportunity:
			c.runReplay(c.ctx)
		}
	}
}

func (c *Client) runReplay(ctx context.Context) syncqueue.ReplayResult {
	c.publish(Event{Kind: EventSyncStarted, At: c.clk.Now()})
	res := c.co.ReplayAll(ctx)
	c.publish(Event{Kind: EventSyncCompleted, Count: res.Succeeded, At: c.clk.Now()})
	return res
}

// publish never blocks: a subscriber that stopped draining loses the oldest
// events first.
func (c *Client) publish(evt Event) {
	c.evMu.RLock()
	defer c.evMu.RUnlock()
	if c.evClosed {
		return
	}

	select {
	case c.events <- evt:
		return
	default:
	}
	select {
	case <-c.events:
	default:
	}
	select {
	case c.events <- evt:
	default:
	}
}

func innerTransport(hc *http.Client) http.RoundTripper {
	if hc == nil {
		return nil
	}
	return hc.Transport
}
