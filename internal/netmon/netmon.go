// Package netmon tracks connectivity as reported by the embedding
// application and fans transitions out to subscribers. The monitor never
// probes the network itself; the host feeds it state changes.
package netmon

import (
	"log/slog"
	"sync"
)

const subscriberBuffer = 8

type Monitor struct {
	logger *slog.Logger

	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]chan bool
}

// New returns a monitor that starts in the online state, matching a fresh
// application load where the network is assumed up until told otherwise.
func New(logger *slog.Logger) *Monitor {
	return &Monitor{
		logger: logger,
		online: true,
		subs:   make(map[int]chan bool),
	}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a connectivity change. Repeated reports of the same
// state are ignored, so each real transition is delivered exactly once per
// subscriber. The delivery never blocks; a subscriber that stopped draining
// keeps only the most recent states.
func (m *Monitor) SetOnline(online bool) (changed bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	subs := make([]chan bool, 0, len(m.subs))
	for _, ch := range m.subs {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("network restored")
	} else {
		m.logger.Info("network lost")
	}

	for _, ch := range subs {
		deliver(ch, online)
	}
	return true
}

// Subscribe registers a transition listener and returns its channel together
// with an unsubscribe func. The channel reports the new state: true for an
// offline to online edge.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan bool, subscriberBuffer)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func deliver(ch chan bool, online bool) {
	select {
	case ch <- online:
		return
	default:
	}
	// Full buffer: shed the oldest state and try once more.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- online:
	default:
	}
}
