// Package queue implements the durable retry queue for sync operations
// that could not complete immediately.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ordokr/LMS-sub004/internal/contentsync"
	"github.com/ordokr/LMS-sub004/internal/metrics"
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/storage"
)

// ErrInvalidItem некорректные параметры элемента очереди
var ErrInvalidItem = errors.New("invalid queue item")

//go:generate moq -out transferer_mock.go . Transferer

// Transferer переносит содержимое сущности в заданном направлении
type Transferer interface {
	Transfer(ctx context.Context, kind models.EntityKind, entityID string, dir models.Direction) (*contentsync.Result, error)
}

// StateTracker отражает исход обработки в состоянии сущности
type StateTracker interface {
	Touch(ctx context.Context, kind models.EntityKind, entityID string) error
	MarkError(ctx context.Context, kind models.EntityKind, entityID string) error
}

// Config параметры очереди
type Config struct {
	BatchSize          int
	Concurrency        int
	DefaultMaxAttempts int
	ProcessingTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.DefaultMaxAttempts <= 0 {
		c.DefaultMaxAttempts = 3
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = 5 * time.Minute
	}
	return c
}

// DrainResult итог одного прохода по очереди
type DrainResult struct {
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Released  int `json:"released"`
}

// Queue очередь повторов поверх постоянного хранилища
type Queue struct {
	store    storage.QueueStorage
	transfer Transferer
	states   StateTracker
	logger   *slog.Logger
	metrics  *metrics.Registry
	now      func() time.Time
	cfg      Config
	mu       sync.Mutex
}

// New создает очередь
func New(store storage.QueueStorage, transfer Transferer, states StateTracker, cfg Config, logger *slog.Logger, m *metrics.Registry) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		store:    store,
		transfer: transfer,
		states:   states,
		logger:   logger,
		metrics:  m,
		cfg:      cfg.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue добавляет операцию в очередь. maxAttempts <= 0 - значение по умолчанию.
func (q *Queue) Enqueue(ctx context.Context, kind models.EntityKind, entityID string, dir models.Direction, maxAttempts int) (*models.QueueItem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: entity kind %q", ErrInvalidItem, kind)
	}
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity id is required", ErrInvalidItem)
	}
	if _, err := models.ParseDirection(string(dir)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	if maxAttempts <= 0 {
		maxAttempts = q.cfg.DefaultMaxAttempts
	}

	now := q.now()
	item := &models.QueueItem{
		ID:          uuid.New().String(),
		Kind:        kind,
		EntityID:    entityID,
		Direction:   dir,
		Status:      models.QueuePending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	q.mu.Lock()
	err := q.store.EnqueueItem(ctx, item)
	q.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue: %w", err)
	}

	q.logger.InfoContext(ctx, "sync operation queued",
		slog.String("item_id", item.ID),
		slog.String("entity_type", string(kind)),
		slog.String("entity_id", entityID),
		slog.String("direction", string(dir)))

	return item, nil
}

// Get возвращает элемент очереди
func (q *Queue) Get(ctx context.Context, id string) (*models.QueueItem, error) {
	return q.store.GetQueueItem(ctx, id)
}

// List возвращает элементы с заданным статусом (все при пустом статусе)
func (q *Queue) List(ctx context.Context, status models.QueueStatus, limit int) ([]*models.QueueItem, error) {
	return q.store.ListQueueItems(ctx, status, limit)
}

// Stats считает элементы по статусам и обновляет gauge метрик
func (q *Queue) Stats(ctx context.Context) (models.QueueStats, error) {
	stats, err := q.store.CountQueueItems(ctx)
	if err != nil {
		return nil, err
	}
	for status, n := range stats {
		q.metrics.SetQueueItems(string(status), n)
	}
	return stats, nil
}

// Drain забирает до batchSize ожидающих элементов и обрабатывает их
// с ограниченным параллелизмом. batchSize <= 0 - размер пачки из конфигурации.
// Ошибки отдельных элементов не прерывают проход.
func (q *Queue) Drain(ctx context.Context, batchSize int) (DrainResult, error) {
	if batchSize <= 0 {
		batchSize = q.cfg.BatchSize
	}

	q.mu.Lock()
	items, err := q.store.ClaimPending(ctx, batchSize, q.now())
	q.mu.Unlock()
	if err != nil {
		return DrainResult{}, fmt.Errorf("failed to claim pending items: %w", err)
	}

	res := DrainResult{Claimed: len(items)}
	if len(items) == 0 {
		return res, nil
	}

	var resMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.cfg.Concurrency)

	for _, item := range items {
		g.Go(func() error {
			outcome := q.process(gctx, item)

			resMu.Lock()
			defer resMu.Unlock()
			switch outcome {
			case resultCompleted:
				res.Completed++
			case resultRetried:
				res.Retried++
			case resultFailed:
				res.Failed++
			case resultReleased:
				res.Released++
			}
			return nil
		})
	}
	_ = g.Wait()

	q.logger.InfoContext(ctx, "retry queue drained",
		slog.Int("claimed", res.Claimed),
		slog.Int("completed", res.Completed),
		slog.Int("retried", res.Retried),
		slog.Int("failed", res.Failed),
		slog.Int("released", res.Released))

	return res, nil
}

const (
	resultCompleted = "completed"
	resultRetried   = "retried"
	resultFailed    = "failed"
	resultLost      = "lost"
	resultReleased  = "released"
)

// process обрабатывает один захваченный элемент и переводит его в итоговый статус
func (q *Queue) process(ctx context.Context, item *models.QueueItem) string {
	logger := q.logger.With(
		slog.String("item_id", item.ID),
		slog.String("entity_type", string(item.Kind)),
		slog.String("entity_id", item.EntityID),
		slog.Int("attempt", item.Attempts))

	_, transferErr := q.transfer.Transfer(ctx, item.Kind, item.EntityID, item.Direction)

	// переход статуса не должен теряться из-за отмены прохода
	bookkeeping := context.WithoutCancel(ctx)
	outcome, err := q.settle(bookkeeping, item, transferErr, abandoned(ctx, transferErr))
	switch {
	case errors.Is(err, storage.ErrClaimSuperseded):
		logger.WarnContext(ctx, "queue item was claimed again, outcome dropped", slog.Any("error", err))
		outcome = resultLost
	case err != nil:
		logger.ErrorContext(ctx, "failed to record queue item outcome", slog.Any("error", err))
		outcome = resultLost
	}
	q.metrics.RecordQueueResult(outcome)

	switch outcome {
	case resultReleased:
		logger.InfoContext(ctx, "queue item released after cancellation", slog.Any("error", transferErr))
	case resultCompleted:
		if err := q.states.Touch(bookkeeping, item.Kind, item.EntityID); err != nil {
			logger.WarnContext(ctx, "failed to touch entity state", slog.Any("error", err))
		}
		logger.DebugContext(ctx, "queue item completed")
	case resultRetried:
		logger.WarnContext(ctx, "queue item will be retried", slog.Any("error", transferErr))
	case resultFailed:
		if err := q.states.MarkError(bookkeeping, item.Kind, item.EntityID); err != nil {
			logger.WarnContext(ctx, "failed to mark entity state as error", slog.Any("error", err))
		}
		logger.ErrorContext(ctx, "queue item failed permanently", slog.Any("error", transferErr))
	}

	return outcome
}

// abandoned сообщает, что перенос прерван отменой прохода, а не сбоем платформы
func abandoned(ctx context.Context, transferErr error) bool {
	if transferErr == nil {
		return false
	}
	return ctx.Err() != nil || errors.Is(transferErr, context.Canceled)
}

func (q *Queue) settle(ctx context.Context, item *models.QueueItem, transferErr error, released bool) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	switch {
	case transferErr == nil:
		return resultCompleted, q.store.CompleteItem(ctx, item.ID, item.Attempts, now)
	case released:
		// попытка не засчитывается, элемент снова ждет обработки
		return resultReleased, q.store.ReleaseItem(ctx, item.ID, item.Attempts, now)
	case item.Exhausted() || contentsync.IsPermanent(transferErr):
		return resultFailed, q.store.FailItem(ctx, item.ID, item.Attempts, transferErr.Error(), now)
	default:
		return resultRetried, q.store.RetryItem(ctx, item.ID, item.Attempts, transferErr.Error(), now)
	}
}

// Retry возвращает неудачный элемент в очередь со сброшенным счетчиком попыток
func (q *Queue) Retry(ctx context.Context, id string) (*models.QueueItem, error) {
	q.mu.Lock()
	err := q.store.RearmItem(ctx, id, q.now())
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}

	q.logger.InfoContext(ctx, "queue item re-armed", slog.String("item_id", id))
	return q.store.GetQueueItem(ctx, id)
}

// Sweep возвращает в очередь элементы, зависшие в processing дольше olderThan
// (olderThan <= 0 - таймаут обработки из конфигурации). Элементы с исчерпанными
// попытками переводятся в failed.
func (q *Queue) Sweep(ctx context.Context, olderThan time.Duration) (requeued, failed int64, err error) {
	if olderThan <= 0 {
		olderThan = q.cfg.ProcessingTimeout
	}

	q.mu.Lock()
	now := q.now()
	requeued, failed, err = q.store.RequeueStale(ctx, now.Add(-olderThan), now)
	q.mu.Unlock()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sweep stale items: %w", err)
	}

	q.metrics.RecordQueueSweep("requeued", requeued)
	q.metrics.RecordQueueSweep("failed", failed)
	if requeued > 0 || failed > 0 {
		q.logger.WarnContext(ctx, "stale queue items swept",
			slog.Int64("requeued", requeued),
			slog.Int64("failed", failed))
	}

	return requeued, failed, nil
}

// Cleanup удаляет завершенные элементы старше olderThan. Неудачные не удаляются.
func (q *Queue) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	q.mu.Lock()
	n, err := q.store.DeleteCompletedBefore(ctx, q.now().Add(-olderThan))
	q.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("failed to clean up completed items: %w", err)
	}

	if n > 0 {
		q.logger.InfoContext(ctx, "completed queue items removed", slog.Int64("count", n))
	}
	return n, nil
}
