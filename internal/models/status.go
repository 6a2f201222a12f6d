package models

import "fmt"

// SyncStatus производный статус синхронизации сущности
type SyncStatus string

const (
	StatusPendingSync SyncStatus = "pending_sync"
	StatusSynced      SyncStatus = "synced"
	StatusConflict    SyncStatus = "conflict"
	StatusError       SyncStatus = "error"
)

// ParseSyncStatus разбирает сохраненный статус.
func ParseSyncStatus(s string) (SyncStatus, error) {
	switch st := SyncStatus(s); st {
	case StatusPendingSync, StatusSynced, StatusConflict, StatusError:
		return st, nil
	default:
		return "", fmt.Errorf("%w: sync status %q", ErrUnknownValue, s)
	}
}

func (s SyncStatus) String() string {
	return string(s)
}
