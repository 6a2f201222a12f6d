package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operation вид мутации, выполняемой в рамках транзакции синхронизации
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationCustom Operation = "custom"
)

// ParseOperation разбирает вид операции.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OperationCreate, OperationUpdate, OperationDelete, OperationCustom:
		return op, nil
	default:
		return "", fmt.Errorf("%w: operation %q", ErrUnknownValue, s)
	}
}

// TransactionStatus жизненный цикл транзакции: begun -> committed | rolled_back
type TransactionStatus string

const (
	TransactionBegun      TransactionStatus = "begun"
	TransactionCommitted  TransactionStatus = "committed"
	TransactionRolledBack TransactionStatus = "rolled_back"
)

// ParseTransactionStatus разбирает сохраненный статус транзакции.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(s); st {
	case TransactionBegun, TransactionCommitted, TransactionRolledBack:
		return st, nil
	default:
		return "", fmt.Errorf("%w: transaction status %q", ErrUnknownValue, s)
	}
}

// SyncTransaction единица работы синхронизации
type SyncTransaction struct {
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	ID         string            `json:"id"`
	Kind       EntityKind        `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Operation  Operation         `json:"operation"`
	Source     System            `json:"source_system"`
	Target     System            `json:"target_system"`
	Status     TransactionStatus `json:"status"`
	Error      string            `json:"error,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
}

// Duration возвращает длительность завершенной транзакции.
func (t *SyncTransaction) Duration() time.Duration {
	if t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}
