package offlinecache

import (
	"context"
	"net/http"
)

// Get serves a read through the configured strategy: cache-first by default,
// entity-store fallback when offline. A nil opts means defaults.
func (c *Client) Get(ctx context.Context, endpoint string, opts *RequestOptions) (*Response, error) {
	resp, err := c.co.Get(ctx, endpoint, optsValue(opts))
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Post creates a resource. While offline, or when the network drops the
// request, the mutation is durably queued and answered optimistically.
func (c *Client) Post(ctx context.Context, endpoint string, body []byte, opts *RequestOptions) (*Response, error) {
	return c.mutate(ctx, http.MethodPost, endpoint, body, opts)
}

// Put updates a resource, with the same offline queueing as Post.
func (c *Client) Put(ctx context.Context, endpoint string, body []byte, opts *RequestOptions) (*Response, error) {
	return c.mutate(ctx, http.MethodPut, endpoint, body, opts)
}

// Delete removes a resource, with the same offline queueing as Post.
func (c *Client) Delete(ctx context.Context, endpoint string, body []byte, opts *RequestOptions) (*Response, error) {
	return c.mutate(ctx, http.MethodDelete, endpoint, body, opts)
}

// PreloadCriticalData warms the cache with the configured critical
// endpoints. Individual fetch failures are logged and skipped.
func (c *Client) PreloadCriticalData(ctx context.Context) error {
	c.co.PreloadCriticalData(ctx)
	return ctx.Err()
}

// PreloadImages fetches, optimizes and caches the given image URLs.
func (c *Client) PreloadImages(ctx context.Context, urls []string) error {
	c.co.PreloadImages(ctx, urls)
	return ctx.Err()
}

// ClearCache empties the response tiers. The entity store and the sync
// queue survive: queued mutations and offline fallback data are not cache.
func (c *Client) ClearCache() error {
	c.co.ClearCache()
	return nil
}

// StorageInfo reports usage against the configured storage budget.
func (c *Client) StorageInfo(ctx context.Context) StorageInfo {
	return c.co.StorageInfo(ctx)
}

// SetOnline feeds the platform connectivity signal in. An offline to online
// edge triggers one queued-mutation replay.
func (c *Client) SetOnline(online bool) {
	c.mon.SetOnline(online)
}

// Online reports the last connectivity state fed via SetOnline.
func (c *Client) Online() bool {
	return c.mon.Online()
}

// Events returns the status event stream: connectivity edges, sync
// progress, queued and permanently failed mutations, image evictions.
// The channel is closed by Close. Slow consumers lose oldest events first.
func (c *Client) Events() <-chan Event {
	return c.events
}

// ReplayNow triggers a queued-mutation replay outside the usual online
// transition, e.g. from a user-facing "sync now" control.
func (c *Client) ReplayNow(ctx context.Context) error {
	if res := c.runReplay(ctx); res.Skipped {
		return ErrSyncInFlight
	}
	return ctx.Err()
}

// HTTPTransport returns a RoundTripper serving GETs through the cache
// strategies and queueing mutations that cannot reach the network. Wire it
// into an http.Client to give existing code paths offline behavior.
func (c *Client) HTTPTransport() http.RoundTripper {
	return c.rt
}

func (c *Client) mutate(ctx context.Context, method, endpoint string, body []byte, opts *RequestOptions) (*Response, error) {
	resp, err := c.co.Mutate(ctx, method, endpoint, body, optsValue(opts))
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func optsValue(opts *RequestOptions) RequestOptions {
	if opts == nil {
		return RequestOptions{}
	}
	return *opts
}
