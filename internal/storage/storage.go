package storage

import (
	"context"
	"time"

	"github.com/ordokr/LMS-sub004/internal/models"
)

// StateStorage defines persistence of per-entity version states
type StateStorage interface {
	// GetState retrieves the state of a single entity
	// Returns ErrStateNotFound if the entity is not tracked
	GetState(ctx context.Context, kind models.EntityKind, entityID string) (*models.EntityVersionState, error)

	// UpsertState inserts the state or overwrites all non-key columns
	UpsertState(ctx context.Context, state *models.EntityVersionState) error

	// ListStates returns states matching the filter ordered by kind and id
	ListStates(ctx context.Context, filter models.StateFilter) ([]*models.EntityVersionState, error)
}

// TransactionStorage defines the sync transaction log
type TransactionStorage interface {
	// CreateTransaction records a begun transaction
	CreateTransaction(ctx context.Context, tx *models.SyncTransaction) error

	// FinishTransaction moves a begun transaction to committed or rolled_back
	// Returns ErrTransactionNotFound if there is no begun transaction with this id
	FinishTransaction(ctx context.Context, id string, status models.TransactionStatus, finishedAt time.Time, errMsg string) error

	// GetTransaction retrieves a transaction by id
	GetTransaction(ctx context.Context, id string) (*models.SyncTransaction, error)

	// ListTransactions returns the most recent transactions of an entity, newest first
	ListTransactions(ctx context.Context, kind models.EntityKind, entityID string, limit int) ([]*models.SyncTransaction, error)

	// DeleteFinishedBefore removes committed and rolled back transactions started before the cutoff
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// QueueStorage defines the durable retry queue
type QueueStorage interface {
	// EnqueueItem inserts a new pending item
	EnqueueItem(ctx context.Context, item *models.QueueItem) error

	// GetQueueItem retrieves an item by id
	GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error)

	// ClaimPending atomically moves up to limit oldest pending items to processing
	// and increments their attempt counters
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]*models.QueueItem, error)

	// CompleteItem marks a processing item completed.
	// attempt is the attempt counter of the claim being settled; if the item was
	// claimed again since, ErrClaimSuperseded is returned and nothing changes.
	CompleteItem(ctx context.Context, id string, attempt int, now time.Time) error

	// RetryItem returns a processing item to pending, recording the error
	RetryItem(ctx context.Context, id string, attempt int, errMsg string, now time.Time) error

	// FailItem marks a processing item failed, recording the error
	FailItem(ctx context.Context, id string, attempt int, errMsg string, now time.Time) error

	// ReleaseItem returns an abandoned processing item to pending without
	// counting the attempt
	ReleaseItem(ctx context.Context, id string, attempt int, now time.Time) error

	// RearmItem resets a failed item to pending with zero attempts
	// Returns ErrInvalidTransition if the item is not failed
	RearmItem(ctx context.Context, id string, now time.Time) error

	// RequeueStale resets processing items not updated since staleBefore:
	// items with attempts left go back to pending, exhausted ones to failed
	RequeueStale(ctx context.Context, staleBefore, now time.Time) (requeued int64, failed int64, err error)

	// DeleteCompletedBefore removes completed items last updated before the cutoff
	DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error)

	// ListQueueItems returns items with the given status (all when empty), oldest first
	ListQueueItems(ctx context.Context, status models.QueueStatus, limit int) ([]*models.QueueItem, error)

	// CountQueueItems returns the number of items per status
	CountQueueItems(ctx context.Context) (models.QueueStats, error)
}

// MappingStorage defines persistence of remote platform identifiers
type MappingStorage interface {
	// UpsertMapping creates or replaces the mapping of an entity
	UpsertMapping(ctx context.Context, mapping *models.EntityMapping) error

	// GetMapping retrieves the mapping of an entity
	// Returns ErrMappingNotFound if the entity is not mapped
	GetMapping(ctx context.Context, kind models.EntityKind, entityID string) (*models.EntityMapping, error)

	// ListMappings returns all mappings of a kind ordered by entity id
	ListMappings(ctx context.Context, kind models.EntityKind) ([]*models.EntityMapping, error)
}

// IdentityStorage provides the stable replica identifier of this node
type IdentityStorage interface {
	// EnsureReplicaID returns the persisted replica id, generating and
	// storing one on first use
	EnsureReplicaID(ctx context.Context) (string, error)
}

// MetadataStorage defines node-local bookkeeping of full sync runs
type MetadataStorage interface {
	// SaveLastFullSync saves the completion time of the last full sync
	SaveLastFullSync(ctx context.Context, at time.Time) error

	// GetLastFullSync retrieves the completion time of the last full sync
	// Returns zero time if no full sync has completed yet
	GetLastFullSync(ctx context.Context) (time.Time, error)
}
