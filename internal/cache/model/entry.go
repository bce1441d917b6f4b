package model

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/transac/go-offline-cache/internal/shared/bytes"
)

// Body is the immutable value swapped into an Entry as one unit, so readers
// never observe bytes from one response paired with headers from another.
type Body struct {
	Bytes       []byte
	ContentType string
	Meta        map[string]string
}

// Entry is a single cached response. Timestamps and the body pointer are
// atomics so samplers and snapshot writers can read without partition locks.
type Entry struct {
	key       *Key
	url       string
	body      *atomic.Pointer[Body]
	cachedAt  int64 // atomic: unix nano of the last successful store
	touchedAt int64 // atomic: unix nano of the last read
}

func NewEntry(url string, b Body, now int64) *Entry {
	e := &Entry{
		key:  NewKey(url),
		url:  url,
		body: &atomic.Pointer[Body]{},
	}
	e.body.Store(&b)
	atomic.StoreInt64(&e.cachedAt, now)
	atomic.StoreInt64(&e.touchedAt, now)
	return e
}

// Restore rebuilds an entry from a snapshot, keeping its original store time
// so age-based expiry survives restarts.
func Restore(url string, b Body, cachedAt int64) *Entry {
	e := NewEntry(url, b, cachedAt)
	return e
}

func (e *Entry) Key() *Key {
	if e == nil {
		return nil
	}
	return e.key
}

func (e *Entry) URL() string { return e.url }

func (e *Entry) Body() Body {
	if ptr := e.body.Load(); ptr != nil {
		return *ptr
	}
	return Body{}
}

func (e *Entry) Bytes() []byte {
	if ptr := e.body.Load(); ptr != nil {
		return ptr.Bytes
	}
	return nil
}

// SetBody swaps the payload and marks the entry freshly cached.
func (e *Entry) SetBody(b Body, now int64) {
	e.body.Store(&b)
	atomic.StoreInt64(&e.cachedAt, now)
	atomic.StoreInt64(&e.touchedAt, now)
}

// Renew re-stamps the entry as freshly cached without touching the payload,
// used when a revalidation returned identical bytes.
func (e *Entry) Renew(now int64) {
	atomic.StoreInt64(&e.cachedAt, now)
	atomic.StoreInt64(&e.touchedAt, now)
}

// SameBytes reports whether the stored payload matches b, used to skip swaps
// when a revalidation returned an identical response.
func (e *Entry) SameBytes(b []byte) bool {
	a := e.Bytes()
	if a == nil {
		return b == nil
	}
	if b == nil {
		return false
	}
	return bytes.Equal(a, b)
}

func (e *Entry) CachedAt() int64 {
	return atomic.LoadInt64(&e.cachedAt)
}

func (e *Entry) TouchedAt() int64 {
	return atomic.LoadInt64(&e.touchedAt)
}

func (e *Entry) Touch(now int64) {
	atomic.StoreInt64(&e.touchedAt, now)
}

// Expired reports whether the entry outlived maxAge at the given instant.
// A non-positive maxAge means the entry never expires.
func (e *Entry) Expired(now int64, maxAge time.Duration) bool {
	if e == nil || maxAge <= 0 {
		return false
	}
	return now-e.CachedAt() > maxAge.Nanoseconds()
}

func (e *Entry) Age(now int64) time.Duration {
	return time.Duration(now - e.CachedAt())
}

// Weight approximates resident size: struct overhead plus payload capacity
// and the retained url string.
func (e *Entry) Weight() int64 {
	w := int64(unsafe.Sizeof(*e)) + int64(len(e.url))
	if ptr := e.body.Load(); ptr != nil {
		w += int64(cap(ptr.Bytes)) + int64(len(ptr.ContentType))
		for k, v := range ptr.Meta {
			w += int64(len(k) + len(v))
		}
	}
	return w
}
