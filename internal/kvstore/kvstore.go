// Package kvstore wraps the single bbolt file shared by the entity
// collections and the sync queue. Every write goes through an Update
// transaction, so a crash never leaves a half-written record behind.
package kvstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Bucket names. Created up front so readers never race bucket creation.
const (
	BucketProducts  = "products"
	BucketStores    = "stores"
	BucketUserData  = "userData"
	BucketSyncQueue = "syncQueue"
	BucketMeta      = "meta"
)

var buckets = []string{BucketProducts, BucketStores, BucketUserData, BucketSyncQueue, BucketMeta}

type Store struct {
	db *bbolt.DB
}

// Open opens the store at the provided path, creating buckets as needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put persists value under key in the named bucket.
func (s *Store) Put(ctx context.Context, bucket string, key, value []byte) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(key) == 0 {
		return fmt.Errorf("record key is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %q is missing", bucket)
		}
		return b.Put(key, value)
	})
}

// Get fetches the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, bucket string, key []byte) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %q is missing", bucket)
		}
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}
		value = append([]byte(nil), v...) // bbolt memory is only valid inside the tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Delete removes key from the named bucket. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, bucket string, key []byte) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %q is missing", bucket)
		}
		return b.Delete(key)
	})
}

// Append stores value under the bucket's next sequence number and returns the
// generated key. Sequence keys are big-endian, so cursor order is FIFO order.
func (s *Store) Append(ctx context.Context, bucket string, value []byte) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var key []byte
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %q is missing", bucket)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		key = itob(seq)
		return b.Put(key, value)
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// ForEach visits every record in the named bucket in key order. Values are
// copied before fn sees them, so they may be retained.
func (s *Store) ForEach(ctx context.Context, bucket string, fn func(key, value []byte) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %q is missing", bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(append([]byte(nil), k...), append([]byte(nil), v...))
		})
	})
}

// Count returns the number of records in the named bucket.
func (s *Store) Count(ctx context.Context, bucket string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %q is missing", bucket)
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// SizeBytes returns the on-disk size of the database file.
func (s *Store) SizeBytes() int64 {
	if s == nil || s.db == nil {
		return 0
	}
	var size int64
	_ = s.db.View(func(tx *bbolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
