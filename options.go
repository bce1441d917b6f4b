package offlinecache

import (
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
)

type options struct {
	httpClient *http.Client
	clk        clock.Clock
	registry   prometheus.Registerer
}

// Option customizes a Client beyond what the config covers.
type Option func(*options)

// WithHTTPClient substitutes the http.Client used for all outbound traffic.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithClock substitutes the time source. Tests drive tier expiry, sweeps
// and replay pacing through a mock clock.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clk = clk }
}

// WithMetricsRegistry registers cache, sweep and sync-queue metrics with
// the given prometheus registry. Without it no metrics are collected.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}
