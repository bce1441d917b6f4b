package entitystore

import (
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/transac/go-offline-cache/internal/kvstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "offline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return New(kv, slog.Default())
}

// TestStore_PutGet verifies a record round trip.
func TestStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	rec := Record{
		ID:          "prod-1",
		LastUpdated: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Data:        json.RawMessage(`{"id":"prod-1","name":"Pump valve"}`),
	}
	require.NoError(t, s.Put(ctx, Products, rec))

	got, err := s.Get(ctx, Products, "prod-1")
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.True(t, rec.LastUpdated.Equal(got.LastUpdated))
	require.JSONEq(t, string(rec.Data), string(got.Data))
}

// TestStore_Put_RequiresID verifies id validation.
func TestStore_Put_RequiresID(t *testing.T) {
	s := newTestStore(t)

	err := s.Put(t.Context(), Products, Record{Data: json.RawMessage(`{}`)})
	require.Error(t, err)
}

// TestStore_Get_NotFound verifies the missing-record sentinel passes through.
func TestStore_Get_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(t.Context(), Stores, "missing")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

// TestStore_GetAll_MaxLastUpdated verifies the computed staleness stamp.
func TestStore_GetAll_MaxLastUpdated(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	older := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutAll(ctx, Stores, []Record{
		{ID: "store-1", LastUpdated: older, Data: json.RawMessage(`{"id":"store-1"}`)},
		{ID: "store-2", LastUpdated: newer, Data: json.RawMessage(`{"id":"store-2"}`)},
	}))

	recs, lastUpdated, err := s.GetAll(ctx, Stores)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.True(t, newer.Equal(lastUpdated))
}

// TestStore_GetAll_Empty verifies an empty collection yields no records.
func TestStore_GetAll_Empty(t *testing.T) {
	s := newTestStore(t)

	recs, lastUpdated, err := s.GetAll(t.Context(), Products)
	require.NoError(t, err)
	require.Empty(t, recs)
	require.True(t, lastUpdated.IsZero())
}

// TestStore_Put_Overwrites verifies last-write-wins per id.
func TestStore_Put_Overwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Put(ctx, Products, Record{ID: "p", Data: json.RawMessage(`{"rev":1}`)}))
	require.NoError(t, s.Put(ctx, Products, Record{ID: "p", Data: json.RawMessage(`{"rev":2}`)}))

	got, err := s.Get(ctx, Products, "p")
	require.NoError(t, err)
	require.JSONEq(t, `{"rev":2}`, string(got.Data))

	n, err := s.Count(ctx, Products)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

// TestDecompose_BareArray verifies extraction from a plain entity list.
func TestDecompose_BareArray(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	payload := []byte(`[
		{"id":"p1","name":"Valve","updated_at":"2026-08-01T09:30:00Z"},
		{"id":"p2","name":"Hose","updated_at":"2026-08-10T09:30:00"}
	]`)

	recs := Decompose(Products, payload, now)
	require.Len(t, recs, 2)
	require.Equal(t, "p1", recs[0].ID)
	require.Equal(t, time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC), recs[0].LastUpdated)
	// Naive datetime without a zone still parses.
	require.Equal(t, 10, recs[1].LastUpdated.Day())
}

// TestDecompose_WrappedObject verifies the {"stores":[...]} shape.
func TestDecompose_WrappedObject(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"stores":[{"id":"s1","name":"Acme Industrial"}]}`)

	recs := Decompose(Stores, payload, now)
	require.Len(t, recs, 1)
	require.Equal(t, "s1", recs[0].ID)
	// No timestamp in the document: stamped with now.
	require.True(t, recs[0].LastUpdated.Equal(now))
}

// TestDecompose_UserProfile verifies the single-object profile shape.
func TestDecompose_UserProfile(t *testing.T) {
	payload := []byte(`{"id":"u-1","relay_id":"r-9","updated_at":"2026-08-25T08:00:00Z"}`)

	recs := Decompose(UserData, payload, time.Now())
	require.Len(t, recs, 1)
	require.Equal(t, ProfileID, recs[0].ID)
}

// TestDecompose_UnrecognizedShape verifies junk payloads yield nothing.
func TestDecompose_UnrecognizedShape(t *testing.T) {
	require.Empty(t, Decompose(Products, []byte(`"just a string"`), time.Now()))
	require.Empty(t, Decompose(Products, []byte(`{"error":"boom"}`), time.Now()))
	require.Empty(t, Decompose(Products, []byte(`[1,2,3]`), time.Now()))
	require.Empty(t, Decompose(Products, []byte(`not json`), time.Now()))
}

// TestReassemble_Array verifies list payload reconstruction.
func TestReassemble_Array(t *testing.T) {
	recs := []Record{
		{ID: "p1", Data: json.RawMessage(`{"id":"p1"}`)},
		{ID: "p2", Data: json.RawMessage(`{"id":"p2"}`)},
	}

	payload, err := Reassemble(Products, recs)
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"p1"},{"id":"p2"}]`, string(payload))
}

// TestReassemble_UserProfile verifies the freshest profile document wins.
func TestReassemble_UserProfile(t *testing.T) {
	recs := []Record{
		{ID: ProfileID, LastUpdated: time.Unix(100, 0), Data: json.RawMessage(`{"rev":1}`)},
		{ID: ProfileID, LastUpdated: time.Unix(200, 0), Data: json.RawMessage(`{"rev":2}`)},
	}

	payload, err := Reassemble(UserData, recs)
	require.NoError(t, err)
	require.JSONEq(t, `{"rev":2}`, string(payload))
}

// TestDecomposeReassemble_RoundTrip verifies store-and-rebuild end to end.
func TestDecomposeReassemble_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	payload := []byte(`[{"id":"p1","price":19.9},{"id":"p2","price":45.0}]`)
	recs := Decompose(Products, payload, time.Now())
	require.NoError(t, s.PutAll(ctx, Products, recs))

	stored, _, err := s.GetAll(ctx, Products)
	require.NoError(t, err)

	rebuilt, err := Reassemble(Products, stored)
	require.NoError(t, err)
	require.JSONEq(t, string(payload), string(rebuilt))
}
