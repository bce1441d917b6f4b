package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/cache/model"
)

const defaultMapCap = 64

// Tier is one cache partition: a keyed map plus a store-ordered list with the
// newest entry at the front. Trim and ceiling enforcement walk the list from
// the back, so the oldest entry by cachedAt always goes first.
type Tier struct {
	name     string
	cfg      config.TierCfg
	counters counters

	mu    sync.RWMutex
	items map[uint64]*model.Entry
	order *list.List // front: most recently stored
	idx   map[uint64]*list.Element

	len int64 // atomic
	mem int64 // atomic
}

func NewTier(name string, cfg config.TierCfg) *Tier {
	return &Tier{
		name:  name,
		cfg:   cfg,
		items: make(map[uint64]*model.Entry, defaultMapCap),
		order: list.New(),
		idx:   make(map[uint64]*list.Element, defaultMapCap),
	}
}

func (t *Tier) Name() string          { return t.name }
func (t *Tier) MaxAge() time.Duration { return t.cfg.MaxAge }
func (t *Tier) Len() int64            { return atomic.LoadInt64(&t.len) }
func (t *Tier) Mem() int64            { return atomic.LoadInt64(&t.mem) }

// Get returns the entry for url when present and fresh. An entry read past
// its max age is deleted on the spot and reported as a miss.
func (t *Tier) Get(url string, now int64) (*model.Entry, bool) {
	k := model.NewKey(url)

	t.mu.RLock()
	e, found := t.items[k.Value()]
	t.mu.RUnlock()

	if !found || !e.Key().IsTheSame(k) {
		t.counters.misses.Add(1)
		return nil, false
	}
	if e.Expired(now, t.cfg.MaxAge) {
		t.removeExpired(k.Value(), now)
		t.counters.expiredReads.Add(1)
		t.counters.misses.Add(1)
		return nil, false
	}

	e.Touch(now)
	t.counters.hits.Add(1)
	return e, true
}

// Put stores body under url and returns the resident entry. An identical
// payload only re-stamps the existing entry; a changed payload is swapped in
// place. Inserts trim the partition back under its entry and byte limits,
// never touching the entry just stored.
func (t *Tier) Put(url string, b model.Body, now int64) *model.Entry {
	k := model.NewKey(url)

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, found := t.items[k.Value()]; found {
		if old.Key().IsTheSame(k) {
			if old.SameBytes(b.Bytes) {
				old.Renew(now)
			} else {
				w := old.Weight()
				old.SetBody(b, now)
				atomic.AddInt64(&t.mem, old.Weight()-w)
			}
			t.moveFrontLocked(k.Value())
			return old
		}
		// hash collision: a different url landed on the same 64-bit sum
		t.removeLocked(k.Value(), old)
	}

	e := model.NewEntry(url, b, now)
	t.items[k.Value()] = e
	t.idx[k.Value()] = t.order.PushFront(k.Value())
	atomic.AddInt64(&t.len, 1)
	atomic.AddInt64(&t.mem, e.Weight())

	t.trimLocked()
	return e
}

// RestoreEntry inserts a snapshot entry keeping its original cachedAt. The
// caller feeds entries oldest first so store order is rebuilt correctly.
func (t *Tier) RestoreEntry(e *model.Entry) {
	key := e.Key().Value()

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, found := t.items[key]; found {
		return
	}
	t.items[key] = e
	t.idx[key] = t.order.PushFront(key)
	atomic.AddInt64(&t.len, 1)
	atomic.AddInt64(&t.mem, e.Weight())

	t.trimLocked()
}

func (t *Tier) Delete(url string) bool {
	k := model.NewKey(url)

	t.mu.Lock()
	defer t.mu.Unlock()

	e, found := t.items[k.Value()]
	if !found || !e.Key().IsTheSame(k) {
		return false
	}
	t.removeLocked(k.Value(), e)
	return true
}

// SweepExpired removes entries past their max age. The pace hook runs between
// deletions so a large partition is not drained in one write-locked burst.
func (t *Tier) SweepExpired(now int64, pace func()) (removed, freed int64) {
	if t.cfg.MaxAge <= 0 {
		return 0, 0
	}

	t.mu.RLock()
	expired := make([]uint64, 0, 16)
	for k, e := range t.items {
		if e.Expired(now, t.cfg.MaxAge) {
			expired = append(expired, k)
		}
	}
	t.mu.RUnlock()

	for _, k := range expired {
		if pace != nil {
			pace()
		}
		if w, ok := t.removeExpired(k, now); ok {
			removed++
			freed += w
		}
	}
	return removed, freed
}

// Evicted describes one entry removed by ceiling enforcement.
type Evicted struct {
	URL   string
	Bytes int64
}

// EnforceByteCeiling pops oldest entries in a single pass until resident
// bytes drop to target. The newest entry always survives; a single oversized
// payload cannot be split.
func (t *Tier) EnforceByteCeiling(target int64) []Evicted {
	if target <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Evicted
	for atomic.LoadInt64(&t.mem) > target && t.order.Len() > 1 {
		back := t.order.Back()
		key := back.Value.(uint64)
		e, found := t.items[key]
		if !found {
			t.order.Remove(back)
			delete(t.idx, key)
			continue
		}
		w := t.removeLocked(key, e)
		t.counters.evictedItems.Add(1)
		t.counters.evictedBytes.Add(w)
		out = append(out, Evicted{URL: e.URL(), Bytes: w})
	}
	return out
}

func (t *Tier) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = make(map[uint64]*model.Entry, defaultMapCap)
	t.order.Init()
	t.idx = make(map[uint64]*list.Element, defaultMapCap)
	atomic.StoreInt64(&t.len, 0)
	atomic.StoreInt64(&t.mem, 0)
}

// Walk visits entries in store order, newest first. Return false to stop.
func (t *Tier) Walk(fn func(e *model.Entry) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for el := t.order.Front(); el != nil; el = el.Next() {
		if e, found := t.items[el.Value.(uint64)]; found {
			if !fn(e) {
				return
			}
		}
	}
}

// TierStats is a point-in-time view of one partition.
type TierStats struct {
	Name         string
	Entries      int64
	Bytes        int64
	Hits         int64
	Misses       int64
	ExpiredReads int64
	EvictedItems int64
	EvictedBytes int64
}

func (t *Tier) Stats() TierStats {
	hits, misses, expiredReads, evictedItems, evictedBytes := t.counters.snapshot()
	return TierStats{
		Name:         t.name,
		Entries:      t.Len(),
		Bytes:        t.Mem(),
		Hits:         hits,
		Misses:       misses,
		ExpiredReads: expiredReads,
		EvictedItems: evictedItems,
		EvictedBytes: evictedBytes,
	}
}

/**
 * Private API.
 */

func (t *Tier) removeExpired(key uint64, now int64) (freed int64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, found := t.items[key]
	if !found || !e.Expired(now, t.cfg.MaxAge) {
		return 0, false
	}
	return t.removeLocked(key, e), true
}

func (t *Tier) removeLocked(key uint64, e *model.Entry) int64 {
	delete(t.items, key)
	if el := t.idx[key]; el != nil {
		t.order.Remove(el)
		delete(t.idx, key)
	}
	w := e.Weight()
	atomic.AddInt64(&t.len, -1)
	atomic.AddInt64(&t.mem, -w)
	return w
}

func (t *Tier) moveFrontLocked(key uint64) {
	if el := t.idx[key]; el != nil {
		t.order.MoveToFront(el)
	}
}

func (t *Tier) trimLocked() {
	for t.overLimitLocked() {
		back := t.order.Back()
		if back == nil || back == t.order.Front() {
			return
		}
		key := back.Value.(uint64)
		if e, found := t.items[key]; found {
			w := t.removeLocked(key, e)
			t.counters.evictedItems.Add(1)
			t.counters.evictedBytes.Add(w)
		} else {
			t.order.Remove(back)
			delete(t.idx, key)
		}
	}
}

func (t *Tier) overLimitLocked() bool {
	if t.cfg.MaxEntries > 0 && atomic.LoadInt64(&t.len) > int64(t.cfg.MaxEntries) {
		return true
	}
	if t.cfg.MaxBytes > 0 && atomic.LoadInt64(&t.mem) > t.cfg.MaxBytes {
		return true
	}
	return false
}
