// Package transport is the single network door. The coordinator, the image
// manager and queue replay all issue their requests through one Client, so
// base-url resolution and header policy live in exactly one place.
//
// A returned error always means the exchange itself failed (refused, reset,
// timed out). An HTTP error status is a server answer, not an error; callers
// read Reply.Status to decide what to do with it.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/transac/go-offline-cache/config"
)

// Reply is one network response as the cache layers consume it.
type Reply struct {
	Status      int
	Bytes       []byte
	ContentType string
}

// OK reports a 2xx status.
func (r Reply) OK() bool { return r.Status >= 200 && r.Status < 300 }

type Client struct {
	cfg    *config.TransportCfg
	http   *http.Client
	logger *slog.Logger
}

// New builds the door. A nil httpClient falls back to a default client with
// the configured timeout.
func New(cfg *config.TransportCfg, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// Do issues one request and reads the whole response body.
func (c *Client) Do(ctx context.Context, method, endpoint string, body []byte, headers map[string]string) (Reply, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint), reader)
	if err != nil {
		return Reply{}, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("issue request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("read response body: %w", err)
	}

	return Reply{
		Status:      resp.StatusCode,
		Bytes:       payload,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Get fetches endpoint with no body.
func (c *Client) Get(ctx context.Context, endpoint string, headers map[string]string) (Reply, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil, headers)
}

// FetchBytes fetches endpoint and returns payload plus content type. Unlike
// Do, a non-2xx status is an error here: image and preload callers have no
// use for an error document.
func (c *Client) FetchBytes(ctx context.Context, endpoint string) ([]byte, string, error) {
	reply, err := c.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, "", err
	}
	if !reply.OK() {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %d", endpoint, reply.Status)
	}
	return reply.Bytes, reply.ContentType, nil
}

// resolve joins the configured base url with a relative endpoint. Absolute
// urls pass through untouched.
func (c *Client) resolve(endpoint string) string {
	if c.cfg.BaseURL == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
