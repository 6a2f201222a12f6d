package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/storage"
)

const transactionColumns = `id, entity_type, entity_id, operation, source_system, target_system,
	status, payload, error_message, started_at, finished_at`

// CreateTransaction records a begun transaction
func (s *Storage) CreateTransaction(ctx context.Context, tx *models.SyncTransaction) error {
	query := `
		INSERT INTO sync_transactions (
			id, entity_type, entity_id, operation, source_system, target_system,
			status, payload, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		tx.ID,
		string(tx.Kind),
		tx.EntityID,
		string(tx.Operation),
		string(tx.Source),
		string(tx.Target),
		string(tx.Status),
		[]byte(tx.Payload),
		formatTime(tx.StartedAt),
	)
	if err != nil {
		return dbError("insert sync transaction", err)
	}

	return nil
}

// FinishTransaction moves a begun transaction to committed or rolled_back
func (s *Storage) FinishTransaction(ctx context.Context, id string, status models.TransactionStatus, finishedAt time.Time, errMsg string) error {
	query := `
		UPDATE sync_transactions
		SET status = ?, error_message = ?, finished_at = ?,
		    duration_ms = CAST((julianday(?) - julianday(started_at)) * 86400000 AS INTEGER)
		WHERE id = ? AND status = ?
	`

	finished := formatTime(finishedAt)
	result, err := s.db.ExecContext(ctx, query,
		string(status), errMsg, finished, finished, id, string(models.TransactionBegun))
	if err != nil {
		return dbError("finish sync transaction", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return dbError("get rows affected", err)
	}
	if affected == 0 {
		return storage.ErrTransactionNotFound
	}

	return nil
}

// GetTransaction retrieves a transaction by id
func (s *Storage) GetTransaction(ctx context.Context, id string) (*models.SyncTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM sync_transactions WHERE id = ?`

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTransactionNotFound
		}
		return nil, err
	}

	return tx, nil
}

// ListTransactions returns the most recent transactions of an entity, newest first
func (s *Storage) ListTransactions(ctx context.Context, kind models.EntityKind, entityID string, limit int) ([]*models.SyncTransaction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + transactionColumns + `
		FROM sync_transactions
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, string(kind), entityID, limit)
	if err != nil {
		return nil, dbError("query sync transactions", err)
	}
	defer rows.Close()

	txs := make([]*models.SyncTransaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate sync transactions", err)
	}

	return txs, nil
}

// DeleteFinishedBefore removes committed and rolled back transactions started before the cutoff
func (s *Storage) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM sync_transactions WHERE status IN (?, ?) AND started_at < ?`

	result, err := s.db.ExecContext(ctx, query,
		string(models.TransactionCommitted), string(models.TransactionRolledBack), formatTime(before))
	if err != nil {
		return 0, dbError("delete sync transactions", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, dbError("get rows affected", err)
	}

	return affected, nil
}

func scanTransaction(row scanner) (*models.SyncTransaction, error) {
	var (
		tx                              models.SyncTransaction
		kind, operation, source, target string
		status, startedAt               string
		payload                         []byte
		finishedAt                      sql.NullString
	)

	err := row.Scan(&tx.ID, &kind, &tx.EntityID, &operation, &source, &target,
		&status, &payload, &tx.Error, &startedAt, &finishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, dbError("scan sync transaction", err)
	}

	if tx.Kind, err = models.ParseEntityKind(kind); err != nil {
		return nil, corrupt(err)
	}
	if tx.Operation, err = models.ParseOperation(operation); err != nil {
		return nil, corrupt(err)
	}
	if tx.Source, err = models.ParseSystem(source); err != nil {
		return nil, corrupt(err)
	}
	if tx.Target, err = models.ParseSystem(target); err != nil {
		return nil, corrupt(err)
	}
	if tx.Status, err = models.ParseTransactionStatus(status); err != nil {
		return nil, corrupt(err)
	}
	if tx.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		tx.FinishedAt = &t
	}
	if len(payload) > 0 {
		tx.Payload = payload
	}

	return &tx, nil
}
