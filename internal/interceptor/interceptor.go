// Package interceptor plugs the offline layer into plain net/http traffic.
// Transport answers GET requests from the cache tiers and turns failed
// mutations into queued ones; Actor carries platform signals from whatever
// goroutine raises them to the client's foreground loop without ever
// blocking the signaler.
package interceptor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/transac/go-offline-cache/internal/coordinator"
	"github.com/transac/go-offline-cache/internal/netmon"
	"github.com/transac/go-offline-cache/internal/shared/queue"
)

// Signal is a platform notification relayed to the foreground loop.
type Signal uint8

const (
	// SignalSyncOpportunity asks the foreground loop to replay the queue.
	SignalSyncOpportunity Signal = iota + 1
	// SignalStatusChange reports a connectivity edge.
	SignalStatusChange
)

// Message is a timestamped signal on its way to the foreground loop.
type Message struct {
	Signal Signal
	Online bool
	At     time.Time
}

// Actor owns the signal ring. Producers post from any goroutine; Run drains
// the ring in order onto the outbound channel. A full ring sheds the oldest
// signal rather than stalling the producer.
type Actor struct {
	logger *slog.Logger
	clk    clock.Clock
	ring   *queue.Ring[Message]
	wake   chan struct{}
	out    chan Message
}

func NewActor(logger *slog.Logger, clk clock.Clock, size int) *Actor {
	if clk == nil {
		clk = clock.New()
	}
	return &Actor{
		logger: logger,
		clk:    clk,
		ring:   queue.NewRing[Message](size),
		wake:   make(chan struct{}, 1),
		out:    make(chan Message),
	}
}

// Post enqueues a signal. Never blocks.
func (a *Actor) Post(sig Signal, online bool) {
	a.ring.Push(Message{Signal: sig, Online: online, At: a.clk.Now()})
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Messages is the channel Run delivers on. Closed when Run returns.
func (a *Actor) Messages() <-chan Message {
	return a.out
}

// Run blocks until ctx is cancelled, forwarding posted signals in order.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.out)
	for {
		select {
		case <-ctx.Done():
			if n := a.ring.Dropped(); n > 0 {
				a.logger.Debug("signal actor stopped with shed signals", "dropped", n)
			}
			return
		case <-a.wake:
			for {
				msg, ok := a.ring.TryPop()
				if !ok {
					break
				}
				select {
				case a.out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Transport is an http.RoundTripper for callers that talk plain net/http
// instead of the facade. GET requests run through the coordinator so they
// hit the tiers and the offline fallbacks; mutations that fail on the wire
// are queued and answered 202; everything else passes through untouched.
type Transport struct {
	co     *coordinator.Coordinator
	mon    *netmon.Monitor
	inner  http.RoundTripper
	clk    clock.Clock
	logger *slog.Logger
	notify func(coordinator.Event)
}

func NewTransport(co *coordinator.Coordinator, mon *netmon.Monitor, inner http.RoundTripper, clk clock.Clock, logger *slog.Logger, notify func(coordinator.Event)) *Transport {
	if inner == nil {
		inner = http.DefaultTransport
	}
	if clk == nil {
		clk = clock.New()
	}
	if notify == nil {
		notify = func(coordinator.Event) {}
	}
	return &Transport{co: co, mon: mon, inner: inner, clk: clk, logger: logger, notify: notify}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch {
	case req.Method == http.MethodGet:
		return t.serveGet(req)
	case isMutation(req.Method):
		return t.serveMutation(req)
	default:
		return t.inner.RoundTrip(req)
	}
}

/**
 * Private API.
 */

func (t *Transport) serveGet(req *http.Request) (*http.Response, error) {
	url := req.URL.String()
	resp, err := t.co.Get(req.Context(), url, coordinator.RequestOptions{Headers: flatten(req.Header)})
	if err != nil {
		return nil, err
	}
	if resp.FromCache {
		t.notify(coordinator.Event{Kind: coordinator.EventAssetIntercepted, Endpoint: url, At: t.clk.Now()})
	}
	return synthesize(req, resp.Status, resp.Data, resp.ContentType), nil
}

// serveMutation buffers the body so the request can be queued after a wire
// failure. Server answers of any status pass through as they are.
func (t *Transport) serveMutation(req *http.Request) (*http.Response, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("buffer request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(payload))
	}

	url := req.URL.String()
	if !t.mon.Online() {
		return t.queue(req, url, payload)
	}

	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		t.logger.Debug("mutation failed on the wire, queueing", "method", req.Method, "url", url, "error", err)
		return t.queue(req, url, payload)
	}
	return resp, nil
}

func (t *Transport) queue(req *http.Request, url string, payload []byte) (*http.Response, error) {
	queued, err := t.co.EnqueueMutation(req.Context(), req.Method, url, payload, flatten(req.Header))
	if err != nil {
		return nil, err
	}
	return synthesize(req, queued.Status, nil, ""), nil
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func flatten(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

func synthesize(req *http.Request, status int, body []byte, contentType string) *http.Response {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
