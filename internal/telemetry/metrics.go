package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/transac/go-offline-cache/internal/cache"
)

// Metrics is the optional prometheus surface. Counters are advanced by the
// telemetry loop from snapshot deltas rather than per-operation hooks, so
// the hot cache path stays free of metric calls.
type Metrics struct {
	entries   *prometheus.GaugeVec
	sizeBytes *prometheus.GaugeVec

	hits         *prometheus.CounterVec
	misses       *prometheus.CounterVec
	expiredReads *prometheus.CounterVec
	evictions    *prometheus.CounterVec
	evictedBytes *prometheus.CounterVec

	queueDepth prometheus.Gauge

	sweepPasses  prometheus.Counter
	sweepRemoved prometheus.Counter
}

// NewMetrics creates and registers the collectors with the provided registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	tierOpts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace: "offline_cache",
			Subsystem: "tier",
			Name:      name,
			Help:      help,
		}
	}

	m := &Metrics{
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "offline_cache",
			Subsystem: "tier",
			Name:      "entries",
			Help:      "Current number of entries in the tier",
		}, []string{"tier"}),
		sizeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "offline_cache",
			Subsystem: "tier",
			Name:      "size_bytes",
			Help:      "Current payload bytes resident in the tier",
		}, []string{"tier"}),
		hits:         prometheus.NewCounterVec(tierOpts("hits_total", "Total number of tier hits"), []string{"tier"}),
		misses:       prometheus.NewCounterVec(tierOpts("misses_total", "Total number of tier misses"), []string{"tier"}),
		expiredReads: prometheus.NewCounterVec(tierOpts("expired_reads_total", "Total number of reads that found an expired entry"), []string{"tier"}),
		evictions:    prometheus.NewCounterVec(tierOpts("evictions_total", "Total number of evicted entries"), []string{"tier"}),
		evictedBytes: prometheus.NewCounterVec(tierOpts("evicted_bytes_total", "Total payload bytes evicted"), []string{"tier"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "offline_cache",
			Subsystem: "sync",
			Name:      "queue_depth",
			Help:      "Current number of queued mutations",
		}),
		sweepPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "offline_cache",
			Subsystem: "sweep",
			Name:      "passes_total",
			Help:      "Total number of sweep passes",
		}),
		sweepRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "offline_cache",
			Subsystem: "sweep",
			Name:      "removed_total",
			Help:      "Total number of expired entries removed by the sweep",
		}),
	}

	collectors := []prometheus.Collector{
		m.entries, m.sizeBytes,
		m.hits, m.misses, m.expiredReads, m.evictions, m.evictedBytes,
		m.queueDepth, m.sweepPasses, m.sweepRemoved,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register telemetry collector: %w", err)
		}
	}
	return m, nil
}

// observeTier publishes one tier's gauges and counter deltas.
func (m *Metrics) observeTier(cur, d cache.TierStats) {
	labels := prometheus.Labels{"tier": cur.Name}
	m.entries.With(labels).Set(float64(cur.Entries))
	m.sizeBytes.With(labels).Set(float64(cur.Bytes))
	m.hits.With(labels).Add(float64(d.Hits))
	m.misses.With(labels).Add(float64(d.Misses))
	m.expiredReads.With(labels).Add(float64(d.ExpiredReads))
	m.evictions.With(labels).Add(float64(d.EvictedItems))
	m.evictedBytes.With(labels).Add(float64(d.EvictedBytes))
}

// observeTotals publishes queue and sweeper figures.
func (m *Metrics) observeTotals(cur, d snapshot) {
	m.queueDepth.Set(float64(cur.queueDepth))
	m.sweepPasses.Add(float64(d.sweepScans))
	m.sweepRemoved.Add(float64(d.sweepRemoved))
}
