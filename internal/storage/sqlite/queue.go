package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/storage"
)

const queueColumns = `id, entity_type, entity_id, sync_direction, status,
	attempt_count, max_attempts, last_error, created_at, updated_at`

// staleError сообщение для элементов, зависших в processing
const staleError = "processing timed out"

// EnqueueItem inserts a new pending item
func (s *Storage) EnqueueItem(ctx context.Context, item *models.QueueItem) error {
	query := `
		INSERT INTO sync_queue (` + queueColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		string(item.Kind),
		item.EntityID,
		string(item.Direction),
		string(item.Status),
		item.Attempts,
		item.MaxAttempts,
		item.LastError,
		formatTime(item.CreatedAt),
		formatTime(item.UpdatedAt),
	)
	if err != nil {
		return dbError("insert queue item", err)
	}

	return nil
}

// GetQueueItem retrieves an item by id
func (s *Storage) GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue WHERE id = ?`

	item, err := scanQueueItem(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrQueueItemNotFound
		}
		return nil, err
	}

	return item, nil
}

// ClaimPending atomically moves up to limit oldest pending items to processing
func (s *Storage) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*models.QueueItem, error) {
	if limit <= 0 {
		return []*models.QueueItem{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbError("begin claim transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + queueColumns + `
		FROM sync_queue
		WHERE status = ?
		ORDER BY created_at, id
		LIMIT ?`

	rows, err := tx.QueryContext(ctx, query, string(models.QueuePending), limit)
	if err != nil {
		return nil, dbError("select pending items", err)
	}

	items := make([]*models.QueueItem, 0, limit)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, dbError("iterate pending items", err)
	}
	rows.Close()

	update := `
		UPDATE sync_queue
		SET status = ?, attempt_count = attempt_count + 1, updated_at = ?
		WHERE id = ? AND status = ?
	`
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, update,
			string(models.QueueProcessing), formatTime(now), item.ID, string(models.QueuePending)); err != nil {
			return nil, dbError("claim queue item", err)
		}
		item.Status = models.QueueProcessing
		item.Attempts++
		item.UpdatedAt = now.UTC()
	}

	if err := tx.Commit(); err != nil {
		return nil, dbError("commit claim transaction", err)
	}

	return items, nil
}

// CompleteItem marks a processing item completed
func (s *Storage) CompleteItem(ctx context.Context, id string, attempt int, now time.Time) error {
	return s.transition(ctx, id, attempt, models.QueueCompleted, "", now)
}

// RetryItem returns a processing item to pending, recording the error
func (s *Storage) RetryItem(ctx context.Context, id string, attempt int, errMsg string, now time.Time) error {
	return s.transition(ctx, id, attempt, models.QueuePending, errMsg, now)
}

// FailItem marks a processing item failed, recording the error
func (s *Storage) FailItem(ctx context.Context, id string, attempt int, errMsg string, now time.Time) error {
	return s.transition(ctx, id, attempt, models.QueueFailed, errMsg, now)
}

// ReleaseItem returns an abandoned processing item to pending and gives the attempt back
func (s *Storage) ReleaseItem(ctx context.Context, id string, attempt int, now time.Time) error {
	query := `
		UPDATE sync_queue
		SET status = ?, attempt_count = attempt_count - 1, updated_at = ?
		WHERE id = ? AND status = ? AND attempt_count = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(models.QueuePending), formatTime(now), id, string(models.QueueProcessing), attempt)
	if err != nil {
		return dbError("release queue item", err)
	}

	return s.checkClaim(ctx, result, id, attempt)
}

// RearmItem resets a failed item to pending with zero attempts
func (s *Storage) RearmItem(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE sync_queue
		SET status = ?, attempt_count = 0, last_error = '', updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(models.QueuePending), formatTime(now), id, string(models.QueueFailed))
	if err != nil {
		return dbError("rearm queue item", err)
	}

	return s.checkTransition(ctx, result, id, models.QueueFailed)
}

// RequeueStale resets processing items not updated since staleBefore
func (s *Storage) RequeueStale(ctx context.Context, staleBefore, now time.Time) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, dbError("begin sweep transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Сначала исчерпавшие попытки - в failed, остальные возвращаются в pending
	failQuery := `
		UPDATE sync_queue
		SET status = ?, last_error = ?, updated_at = ?
		WHERE status = ? AND updated_at < ? AND attempt_count >= max_attempts
	`
	result, err := tx.ExecContext(ctx, failQuery,
		string(models.QueueFailed), staleError, formatTime(now),
		string(models.QueueProcessing), formatTime(staleBefore))
	if err != nil {
		return 0, 0, dbError("fail stale items", err)
	}
	failed, err := result.RowsAffected()
	if err != nil {
		return 0, 0, dbError("get rows affected", err)
	}

	requeueQuery := `
		UPDATE sync_queue
		SET status = ?, last_error = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?
	`
	result, err = tx.ExecContext(ctx, requeueQuery,
		string(models.QueuePending), staleError, formatTime(now),
		string(models.QueueProcessing), formatTime(staleBefore))
	if err != nil {
		return 0, 0, dbError("requeue stale items", err)
	}
	requeued, err := result.RowsAffected()
	if err != nil {
		return 0, 0, dbError("get rows affected", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, dbError("commit sweep transaction", err)
	}

	return requeued, failed, nil
}

// DeleteCompletedBefore removes completed items last updated before the cutoff
func (s *Storage) DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM sync_queue WHERE status = ? AND updated_at < ?`

	result, err := s.db.ExecContext(ctx, query, string(models.QueueCompleted), formatTime(before))
	if err != nil {
		return 0, dbError("delete completed items", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, dbError("get rows affected", err)
	}

	return affected, nil
}

// ListQueueItems returns items with the given status (all when empty), oldest first
func (s *Storage) ListQueueItems(ctx context.Context, status models.QueueStatus, limit int) ([]*models.QueueItem, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + queueColumns + ` FROM sync_queue`
	args := make([]any, 0, 2)
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("query queue items", err)
	}
	defer rows.Close()

	items := make([]*models.QueueItem, 0)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate queue items", err)
	}

	return items, nil
}

// CountQueueItems returns the number of items per status
func (s *Storage) CountQueueItems(ctx context.Context) (models.QueueStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return nil, dbError("count queue items", err)
	}
	defer rows.Close()

	stats := models.QueueStats{
		models.QueuePending:    0,
		models.QueueProcessing: 0,
		models.QueueCompleted:  0,
		models.QueueFailed:     0,
	}
	for rows.Next() {
		var (
			raw   string
			count int
		)
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, dbError("scan queue count", err)
		}
		status, err := models.ParseQueueStatus(raw)
		if err != nil {
			return nil, corrupt(err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate queue counts", err)
	}

	return stats, nil
}

// transition переводит захваченный элемент из processing в статус to.
// attempt подтверждает, что захват не был перехвачен после sweep.
func (s *Storage) transition(ctx context.Context, id string, attempt int, to models.QueueStatus, errMsg string, now time.Time) error {
	query := `
		UPDATE sync_queue
		SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ? AND attempt_count = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(to), errMsg, formatTime(now), id, string(models.QueueProcessing), attempt)
	if err != nil {
		return dbError(fmt.Sprintf("move queue item to %s", to), err)
	}

	return s.checkClaim(ctx, result, id, attempt)
}

// checkClaim различает отсутствующий элемент, перехваченный захват и элемент не в processing
func (s *Storage) checkClaim(ctx context.Context, result sql.Result, id string, attempt int) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return dbError("get rows affected", err)
	}
	if affected > 0 {
		return nil
	}

	item, err := s.GetQueueItem(ctx, id)
	if err != nil {
		return err
	}
	// после перехвата элемент мог уже завершиться новым захватом
	if item.Attempts != attempt {
		return fmt.Errorf("%w: item %s is on attempt %d, not %d",
			storage.ErrClaimSuperseded, id, item.Attempts, attempt)
	}

	return fmt.Errorf("%w: item %s is %s, expected %s",
		storage.ErrInvalidTransition, id, item.Status, models.QueueProcessing)
}

// checkTransition различает отсутствующий элемент и элемент в неподходящем статусе
func (s *Storage) checkTransition(ctx context.Context, result sql.Result, id string, from models.QueueStatus) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return dbError("get rows affected", err)
	}
	if affected > 0 {
		return nil
	}

	item, err := s.GetQueueItem(ctx, id)
	if err != nil {
		return err
	}

	return fmt.Errorf("%w: item %s is %s, expected %s", storage.ErrInvalidTransition, id, item.Status, from)
}

func scanQueueItem(row scanner) (*models.QueueItem, error) {
	var (
		item                    models.QueueItem
		kind, direction, status string
		createdAt, updatedAt    string
	)

	err := row.Scan(&item.ID, &kind, &item.EntityID, &direction, &status,
		&item.Attempts, &item.MaxAttempts, &item.LastError, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, dbError("scan queue item", err)
	}

	if item.Kind, err = models.ParseEntityKind(kind); err != nil {
		return nil, corrupt(err)
	}
	if item.Direction, err = models.ParseDirection(direction); err != nil {
		return nil, corrupt(err)
	}
	if item.Status, err = models.ParseQueueStatus(status); err != nil {
		return nil, corrupt(err)
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &item, nil
}
