package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/cache/model"
)

func newTestTier(maxAge time.Duration, maxEntries int, maxBytes int64) *Tier {
	return NewTier("test", config.TierCfg{
		MaxAge:     maxAge,
		MaxEntries: maxEntries,
		MaxBytes:   maxBytes,
	})
}

func body(s string) model.Body {
	return model.Body{Bytes: []byte(s), ContentType: "application/json"}
}

// TestTier_PutGet verifies that a stored entry is immediately readable.
func TestTier_PutGet(t *testing.T) {
	tier := newTestTier(time.Hour, 16, 0)
	now := time.Now().UnixNano()

	tier.Put("/api/v1/products", body(`{"products":[]}`), now)

	e, ok := tier.Get("/api/v1/products", now)
	require.True(t, ok)
	require.Equal(t, []byte(`{"products":[]}`), e.Bytes())
	require.Equal(t, int64(1), tier.Len())
}

// TestTier_Get_Miss verifies a miss on an unknown url.
func TestTier_Get_Miss(t *testing.T) {
	tier := newTestTier(time.Hour, 16, 0)

	_, ok := tier.Get("/api/v1/unknown", time.Now().UnixNano())
	require.False(t, ok)
	require.Equal(t, int64(1), tier.Stats().Misses)
}

// TestTier_Get_ExpiredDeletes verifies expiry on read removes the entry.
func TestTier_Get_ExpiredDeletes(t *testing.T) {
	tier := newTestTier(time.Hour, 16, 0)
	t0 := time.Now().UnixNano()

	tier.Put("/api/v1/stores", body(`{"stores":[]}`), t0)

	// Fresh within max age.
	_, ok := tier.Get("/api/v1/stores", t0+int64(30*time.Minute))
	require.True(t, ok)

	// Past max age: miss, and the entry is gone.
	_, ok = tier.Get("/api/v1/stores", t0+int64(2*time.Hour))
	require.False(t, ok)
	require.Equal(t, int64(0), tier.Len())
	require.Equal(t, int64(0), tier.Mem())
	require.Equal(t, int64(1), tier.Stats().ExpiredReads)
}

// TestTier_Put_TrimOldest verifies the entry limit evicts the oldest entry.
func TestTier_Put_TrimOldest(t *testing.T) {
	tier := newTestTier(time.Hour, 3, 0)
	now := time.Now().UnixNano()

	for i := 0; i < 4; i++ {
		tier.Put(fmt.Sprintf("/static/file-%d.css", i), body("body{}"), now+int64(i))
	}

	require.Equal(t, int64(3), tier.Len())

	// Oldest is gone, the rest survive.
	_, ok := tier.Get("/static/file-0.css", now+10)
	require.False(t, ok)
	for i := 1; i < 4; i++ {
		_, ok := tier.Get(fmt.Sprintf("/static/file-%d.css", i), now+10)
		require.True(t, ok)
	}
	require.Equal(t, int64(1), tier.Stats().EvictedItems)
}

// TestTier_Put_SamePayloadRenews verifies identical payloads only re-stamp.
func TestTier_Put_SamePayloadRenews(t *testing.T) {
	tier := newTestTier(time.Hour, 16, 0)
	t0 := time.Now().UnixNano()

	e1 := tier.Put("/api/v1/user/profile", body(`{"id":7}`), t0)
	t1 := t0 + int64(45*time.Minute)
	e2 := tier.Put("/api/v1/user/profile", body(`{"id":7}`), t1)

	require.Same(t, e1, e2)
	require.Equal(t, t1, e2.CachedAt())

	// The renewed stamp pushes expiry out past the original schedule.
	_, ok := tier.Get("/api/v1/user/profile", t0+int64(90*time.Minute))
	require.True(t, ok)
}

// TestTier_Put_SwapsChangedPayload verifies in-place payload replacement.
func TestTier_Put_SwapsChangedPayload(t *testing.T) {
	tier := newTestTier(time.Hour, 16, 0)
	t0 := time.Now().UnixNano()

	tier.Put("/api/v1/products", body(`{"rev":1}`), t0)
	memBefore := tier.Mem()

	tier.Put("/api/v1/products", model.Body{Bytes: make([]byte, 4096)}, t0+1)

	require.Equal(t, int64(1), tier.Len())
	require.Greater(t, tier.Mem(), memBefore)

	e, ok := tier.Get("/api/v1/products", t0+2)
	require.True(t, ok)
	require.Len(t, e.Bytes(), 4096)
}

// TestTier_Delete verifies explicit removal.
func TestTier_Delete(t *testing.T) {
	tier := newTestTier(time.Hour, 16, 0)
	now := time.Now().UnixNano()

	tier.Put("/api/v1/products/42", body(`{"id":42}`), now)

	require.True(t, tier.Delete("/api/v1/products/42"))
	require.False(t, tier.Delete("/api/v1/products/42"))

	_, ok := tier.Get("/api/v1/products/42", now)
	require.False(t, ok)
	require.Equal(t, int64(0), tier.Mem())
}

// TestTier_SweepExpired verifies the sweep removes only aged-out entries.
func TestTier_SweepExpired(t *testing.T) {
	tier := newTestTier(time.Hour, 16, 0)
	t0 := time.Now().UnixNano()

	tier.Put("/old-1", body("a"), t0)
	tier.Put("/old-2", body("b"), t0)
	tier.Put("/fresh", body("c"), t0+int64(90*time.Minute))

	removed, freed := tier.SweepExpired(t0+int64(2*time.Hour), nil)

	require.Equal(t, int64(2), removed)
	require.Greater(t, freed, int64(0))
	require.Equal(t, int64(1), tier.Len())

	_, ok := tier.Get("/fresh", t0+int64(2*time.Hour))
	require.True(t, ok)
}

// TestTier_EnforceByteCeiling verifies oldest-first eviction down to target.
func TestTier_EnforceByteCeiling(t *testing.T) {
	tier := newTestTier(0, 0, 0)
	now := time.Now().UnixNano()

	// Five ~100KB payloads, stored oldest to newest.
	for i := 0; i < 5; i++ {
		tier.Put(fmt.Sprintf("/img/photo-%d.jpg", i), model.Body{Bytes: make([]byte, 100<<10)}, now+int64(i))
	}

	target := tier.Mem() - 2*(100<<10)
	evicted := tier.EnforceByteCeiling(target)

	require.Len(t, evicted, 2)
	require.Equal(t, "/img/photo-0.jpg", evicted[0].URL)
	require.Equal(t, "/img/photo-1.jpg", evicted[1].URL)
	require.LessOrEqual(t, tier.Mem(), target)

	// Newest still resident.
	_, ok := tier.Get("/img/photo-4.jpg", now+10)
	require.True(t, ok)
}

// TestTier_EnforceByteCeiling_KeepsNewest verifies a lone oversized entry survives.
func TestTier_EnforceByteCeiling_KeepsNewest(t *testing.T) {
	tier := newTestTier(0, 0, 0)
	now := time.Now().UnixNano()

	tier.Put("/img/huge.jpg", model.Body{Bytes: make([]byte, 1<<20)}, now)

	evicted := tier.EnforceByteCeiling(1024)
	require.Empty(t, evicted)
	require.Equal(t, int64(1), tier.Len())
}

// TestTier_Clear verifies a full reset.
func TestTier_Clear(t *testing.T) {
	tier := newTestTier(time.Hour, 16, 0)
	now := time.Now().UnixNano()

	tier.Put("/a", body("1"), now)
	tier.Put("/b", body("2"), now)
	tier.Clear()

	require.Equal(t, int64(0), tier.Len())
	require.Equal(t, int64(0), tier.Mem())

	_, ok := tier.Get("/a", now)
	require.False(t, ok)
}

// TestTier_Walk verifies store-order iteration, newest first.
func TestTier_Walk(t *testing.T) {
	tier := newTestTier(time.Hour, 16, 0)
	now := time.Now().UnixNano()

	tier.Put("/first", body("1"), now)
	tier.Put("/second", body("2"), now+1)
	tier.Put("/third", body("3"), now+2)

	var urls []string
	tier.Walk(func(e *model.Entry) bool {
		urls = append(urls, e.URL())
		return true
	})

	require.Equal(t, []string{"/third", "/second", "/first"}, urls)
}

// TestTier_RestoreEntry verifies snapshot entries keep their store time.
func TestTier_RestoreEntry(t *testing.T) {
	tier := newTestTier(time.Hour, 16, 0)
	t0 := time.Now().UnixNano()

	e := model.Restore("/api/v1/stores", body(`{"stores":[]}`), t0-int64(30*time.Minute))
	tier.RestoreEntry(e)

	got, ok := tier.Get("/api/v1/stores", t0)
	require.True(t, ok)
	require.Equal(t, t0-int64(30*time.Minute), got.CachedAt())

	// Restoring the same key again is a no-op.
	tier.RestoreEntry(model.Restore("/api/v1/stores", body("other"), t0))
	require.Equal(t, int64(1), tier.Len())
}
