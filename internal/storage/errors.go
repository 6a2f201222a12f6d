package storage

import "errors"

// Common storage errors
var (
	// ErrStateNotFound indicates that no version state is tracked for the entity
	ErrStateNotFound = errors.New("entity state not found")

	// ErrTransactionNotFound indicates that sync transaction was not found
	ErrTransactionNotFound = errors.New("sync transaction not found")

	// ErrQueueItemNotFound indicates that retry queue item was not found
	ErrQueueItemNotFound = errors.New("queue item not found")

	// ErrMappingNotFound indicates that entity has no remote mapping
	ErrMappingNotFound = errors.New("entity mapping not found")

	// ErrInvalidTransition indicates a forbidden queue status transition
	ErrInvalidTransition = errors.New("invalid queue status transition")

	// ErrClaimSuperseded indicates that the item was claimed again after a sweep,
	// so the outcome of the earlier claim must not be recorded
	ErrClaimSuperseded = errors.New("queue item claim superseded")

	// ErrCorruptRecord indicates a persisted row that cannot be decoded
	// (unknown enum string, malformed vector)
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrPersistence indicates that the underlying store failed
	ErrPersistence = errors.New("persistence failure")
)
