package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	keyLastFullSync = "last_full_sync"
)

// SaveLastFullSync saves the completion time of the last full sync
func (s *Storage) SaveLastFullSync(ctx context.Context, at time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		// Храним UnixNano в big-endian
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(at.UnixNano()))

		if err := bucket.Put([]byte(keyLastFullSync), buf); err != nil {
			return fmt.Errorf("failed to save last full sync: %w", err)
		}

		return nil
	})
}

// GetLastFullSync retrieves the completion time of the last full sync
// Returns zero time if no full sync has completed yet
func (s *Storage) GetLastFullSync(ctx context.Context) (time.Time, error) {
	var at time.Time

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		raw := bucket.Get([]byte(keyLastFullSync))
		if raw == nil {
			return nil
		}
		if len(raw) != 8 {
			return fmt.Errorf("unexpected last full sync length %d", len(raw))
		}

		at = time.Unix(0, int64(binary.BigEndian.Uint64(raw))).UTC()
		return nil
	})

	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last full sync: %w", err)
	}

	return at, nil
}
