// Package syncqueue is the durable log of mutations issued while the network
// was unavailable. Items replay in enqueue order once connectivity returns;
// an item that keeps failing is dropped after its retry budget is spent and
// reported so the caller can surface the loss.
package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/kvstore"
	"github.com/transac/go-offline-cache/internal/shared/rate"
)

// Action names the mutation kind a queued item replays.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Item is one pending mutation. The bbolt sequence key that orders it is not
// part of the document; it travels alongside during replay.
type Item struct {
	ID         string            `json:"id"`
	Action     Action            `json:"action"`
	Endpoint   string            `json:"endpoint"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
	RetryCount int               `json:"retryCount"`
}

// Sender issues one queued mutation against the network.
type Sender func(ctx context.Context, item Item) error

// ReplayResult summarizes one replay pass.
type ReplayResult struct {
	Attempted int
	Succeeded int
	Requeued  int
	Dropped   []Item // retry budget spent, removed for good
	Skipped   bool   // another pass was already in flight
}

type Queue struct {
	kv         *kvstore.Store
	logger     *slog.Logger
	clk        clock.Clock
	jitter     *rate.Jitter
	maxRetries int
	replaying  atomic.Bool
}

func New(ctx context.Context, kv *kvstore.Store, cfg *config.SyncCfg, logger *slog.Logger, clk clock.Clock) *Queue {
	if clk == nil {
		clk = clock.New()
	}
	return &Queue{
		kv:         kv,
		logger:     logger,
		clk:        clk,
		jitter:     rate.NewJitter(ctx, cfg.ReplayRate),
		maxRetries: cfg.MaxRetries,
	}
}

// Enqueue appends a mutation to the durable log and returns the stored item.
func (q *Queue) Enqueue(ctx context.Context, action Action, endpoint string, payload []byte, headers map[string]string) (Item, error) {
	item := Item{
		ID:         uuid.NewString(),
		Action:     action,
		Endpoint:   endpoint,
		Payload:    payload,
		Headers:    headers,
		EnqueuedAt: q.clk.Now(),
	}

	doc, err := json.Marshal(item)
	if err != nil {
		return Item{}, fmt.Errorf("marshal queue item: %w", err)
	}
	if _, err := q.kv.Append(ctx, kvstore.BucketSyncQueue, doc); err != nil {
		return Item{}, fmt.Errorf("append queue item: %w", err)
	}

	q.logger.Info("mutation queued",
		"id", item.ID, "action", string(action), "endpoint", endpoint, "retryCount", 0)
	return item, nil
}

// Len returns the number of pending items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.kv.Count(ctx, kvstore.BucketSyncQueue)
}

// Items returns the pending items in enqueue order.
func (q *Queue) Items(ctx context.Context) ([]Item, error) {
	var items []Item
	err := q.kv.ForEach(ctx, kvstore.BucketSyncQueue, func(_, value []byte) error {
		var item Item
		if err := json.Unmarshal(value, &item); err != nil {
			return fmt.Errorf("unmarshal queue item: %w", err)
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ReplayAll walks the queue oldest first, attempting each item once. Success
// removes the item; failure increments its retry count and either requeues it
// for the next pass or, once the budget is spent, drops it. Passes never
// overlap: a call while one is in flight returns immediately with Skipped.
func (q *Queue) ReplayAll(ctx context.Context, send Sender) ReplayResult {
	if !q.replaying.CompareAndSwap(false, true) {
		return ReplayResult{Skipped: true}
	}
	defer q.replaying.Store(false)

	pending, err := q.snapshot(ctx)
	if err != nil {
		q.logger.Error("replay snapshot failed", "error", err)
		return ReplayResult{}
	}

	var res ReplayResult
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		q.jitter.Take()

		res.Attempted++
		err := send(ctx, p.item)
		if err == nil {
			if delErr := q.kv.Delete(ctx, kvstore.BucketSyncQueue, p.key); delErr != nil {
				q.logger.Error("failed to remove replayed item", "id", p.item.ID, "error", delErr)
			}
			res.Succeeded++
			continue
		}
		q.logger.Warn("replay attempt failed",
			"id", p.item.ID, "endpoint", p.item.Endpoint, "retryCount", p.item.RetryCount+1, "error", err)

		p.item.RetryCount++
		if p.item.RetryCount >= q.maxRetries {
			if delErr := q.kv.Delete(ctx, kvstore.BucketSyncQueue, p.key); delErr != nil {
				q.logger.Error("failed to drop exhausted item", "id", p.item.ID, "error", delErr)
			}
			res.Dropped = append(res.Dropped, p.item)
			continue
		}

		doc, marshalErr := json.Marshal(p.item)
		if marshalErr != nil {
			q.logger.Error("failed to marshal requeued item", "id", p.item.ID, "error", marshalErr)
			continue
		}
		if putErr := q.kv.Put(ctx, kvstore.BucketSyncQueue, p.key, doc); putErr != nil {
			q.logger.Error("failed to requeue item", "id", p.item.ID, "error", putErr)
			continue
		}
		res.Requeued++
	}

	q.logger.Info("replay pass finished",
		"attempted", res.Attempted, "succeeded", res.Succeeded,
		"requeued", res.Requeued, "dropped", len(res.Dropped))
	return res
}

type pendingItem struct {
	key  []byte
	item Item
}

func (q *Queue) snapshot(ctx context.Context) ([]pendingItem, error) {
	var pending []pendingItem
	err := q.kv.ForEach(ctx, kvstore.BucketSyncQueue, func(key, value []byte) error {
		var item Item
		if err := json.Unmarshal(value, &item); err != nil {
			q.logger.Warn("skipping unreadable queue item", "error", err)
			return nil
		}
		pending = append(pending, pendingItem{key: key, item: item})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}
