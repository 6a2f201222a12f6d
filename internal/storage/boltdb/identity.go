package boltdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const keyReplicaID = "replica_id"

// EnsureReplicaID returns the persisted replica id, generating and storing one on first use.
// Идентификатор генерируется один раз и переиспользуется после перезапуска,
// иначе векторы версий растут без ограничений.
func (s *Storage) EnsureReplicaID(ctx context.Context) (string, error) {
	var replicaID string

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketIdentity)
		if bucket == nil {
			return fmt.Errorf("identity bucket not found")
		}

		if existing := bucket.Get([]byte(keyReplicaID)); len(existing) > 0 {
			replicaID = string(existing)
			return nil
		}

		replicaID = "node_" + uuid.New().String()
		if err := bucket.Put([]byte(keyReplicaID), []byte(replicaID)); err != nil {
			return fmt.Errorf("failed to save replica id: %w", err)
		}

		return nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to ensure replica id: %w", err)
	}

	return replicaID, nil
}
