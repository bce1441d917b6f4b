// Package entitystore indexes domain entities (products, stores, the user
// profile) by their own ids, independent of the response cache. It is the
// fallback data source for listable endpoints: when the exact response is not
// cached, the collection is reassembled from records written earlier.
package entitystore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/transac/go-offline-cache/internal/kvstore"
)

// Collection names, one per kvstore bucket. The user profile lives in the
// userData collection under a single well-known id.
const (
	Products  = kvstore.BucketProducts
	Stores    = kvstore.BucketStores
	UserData  = kvstore.BucketUserData
	ProfileID = "profile"
)

// Record is one stored entity: the raw JSON document plus the identity and
// freshness stamp extracted from it.
type Record struct {
	ID          string          `json:"id"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Data        json.RawMessage `json:"data"`
}

type Store struct {
	kv     *kvstore.Store
	logger *slog.Logger
}

func New(kv *kvstore.Store, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Put persists one record, overwriting any previous version of the same id.
func (s *Store) Put(ctx context.Context, collection string, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.kv.Put(ctx, collection, []byte(rec.ID), payload)
}

// PutAll persists a batch of records. A failure aborts the batch; records
// already written stay written.
func (s *Store) PutAll(ctx context.Context, collection string, recs []Record) error {
	for _, rec := range recs {
		if err := s.Put(ctx, collection, rec); err != nil {
			return err
		}
	}
	return nil
}

// Get fetches one record by id, or kvstore.ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (Record, error) {
	payload, err := s.kv.Get(ctx, collection, []byte(id))
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

// GetAll returns every record in the collection, in no guaranteed order,
// together with the maximum lastUpdated across them. The timestamp feeds the
// staleness metadata of reassembled responses.
func (s *Store) GetAll(ctx context.Context, collection string) ([]Record, time.Time, error) {
	var (
		recs        []Record
		lastUpdated time.Time
	)
	err := s.kv.ForEach(ctx, collection, func(_, value []byte) error {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			s.logger.Warn("skipping unreadable entity record", "collection", collection, "error", err)
			return nil
		}
		if rec.LastUpdated.After(lastUpdated) {
			lastUpdated = rec.LastUpdated
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return recs, lastUpdated, nil
}

// Delete removes one record by id. Missing ids are not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.kv.Delete(ctx, collection, []byte(id))
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	return s.kv.Count(ctx, collection)
}
