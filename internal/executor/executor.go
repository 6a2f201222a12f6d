// Package executor runs sync mutations as transactions and advances the
// causal clock of the source system after every attempt.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ordokr/LMS-sub004/internal/metrics"
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/storage"
)

// ErrTransaction сбой инфраструктуры транзакций (begin, commit или rollback)
var ErrTransaction = errors.New("sync transaction failure")

// ErrInvalidRequest некорректный запрос на выполнение
var ErrInvalidRequest = errors.New("invalid sync request")

// ClockAdvancer продвигает вектор системы и пересчитывает статус сущности
type ClockAdvancer interface {
	Advance(ctx context.Context, kind models.EntityKind, entityID string, source models.System) (*models.EntityVersionState, error)
}

// Request описывает одну попытку мутации
type Request struct {
	Kind      models.EntityKind
	EntityID  string
	Operation models.Operation
	Source    models.System
	Target    models.System
	Payload   json.RawMessage
}

func (r Request) validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: entity kind %q", ErrInvalidRequest, r.Kind)
	}
	if r.EntityID == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidRequest)
	}
	if _, err := models.ParseOperation(string(r.Operation)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if !r.Source.Valid() {
		return fmt.Errorf("%w: source system %q", ErrInvalidRequest, r.Source)
	}
	if !r.Target.Valid() {
		return fmt.Errorf("%w: target system %q", ErrInvalidRequest, r.Target)
	}
	return nil
}

// Body выполняет собственно мутацию в рамках транзакции
type Body[T any] func(ctx context.Context, tx *models.SyncTransaction) (T, error)

// Config параметры исполнителя
type Config struct {
	// BodyTimeout ограничивает время выполнения тела (0 - без ограничения)
	BodyTimeout time.Duration
	// CommitOnlyClock продвигает часы только после успешного commit.
	// По умолчанию часы продвигаются после каждой попытки.
	CommitOnlyClock bool
}

// Executor общий транзакционный обвязчик всех мутаций синхронизации
type Executor struct {
	clocks  ClockAdvancer
	txlog   storage.TransactionStorage
	logger  *slog.Logger
	metrics *metrics.Registry
	now     func() time.Time
	cfg     Config
}

// New создает исполнитель
func New(clocks ClockAdvancer, txlog storage.TransactionStorage, cfg Config, logger *slog.Logger, m *metrics.Registry) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		clocks:  clocks,
		txlog:   txlog,
		logger:  logger,
		metrics: m,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Execute выполняет body как транзакцию синхронизации:
// begin, тело, commit или rollback, затем продвижение часов системы-источника.
// Учет после тела идет в контексте без отмены, чтобы истекший таймаут
// все равно завершился откатом до обновления часов.
func Execute[T any](ctx context.Context, ex *Executor, req Request, body Body[T]) (T, error) {
	var zero T

	if err := req.validate(); err != nil {
		return zero, err
	}

	tx := &models.SyncTransaction{
		ID:        uuid.New().String(),
		Kind:      req.Kind,
		EntityID:  req.EntityID,
		Operation: req.Operation,
		Source:    req.Source,
		Target:    req.Target,
		Status:    models.TransactionBegun,
		StartedAt: ex.now(),
		Payload:   req.Payload,
	}

	logger := ex.logger.With(
		slog.String("tx_id", tx.ID),
		slog.String("entity_type", string(req.Kind)),
		slog.String("entity_id", req.EntityID),
		slog.String("source", string(req.Source)),
		slog.String("target", string(req.Target)))

	if err := ex.txlog.CreateTransaction(ctx, tx); err != nil {
		ex.metrics.RecordTransaction(string(req.Kind), string(req.Source), "begin_failed", 0)
		logger.ErrorContext(ctx, "failed to begin sync transaction", slog.Any("error", err))
		return zero, fmt.Errorf("%w: begin: %w", ErrTransaction, err)
	}

	result, bodyErr := runBody(ctx, ex.cfg.BodyTimeout, tx, body)

	bookkeeping := context.WithoutCancel(ctx)
	finishedAt := ex.now()
	duration := finishedAt.Sub(tx.StartedAt)

	var errs []error
	if bodyErr == nil {
		if err := ex.txlog.FinishTransaction(bookkeeping, tx.ID, models.TransactionCommitted, finishedAt, ""); err != nil {
			errs = append(errs, fmt.Errorf("%w: commit: %w", ErrTransaction, err))
		}
		ex.metrics.RecordTransaction(string(req.Kind), string(req.Source), string(models.TransactionCommitted), duration)
	} else {
		errs = append(errs, bodyErr)
		if err := ex.txlog.FinishTransaction(bookkeeping, tx.ID, models.TransactionRolledBack, finishedAt, bodyErr.Error()); err != nil {
			errs = append(errs, fmt.Errorf("%w: rollback: %w", ErrTransaction, err))
		}
		ex.metrics.RecordTransaction(string(req.Kind), string(req.Source), string(models.TransactionRolledBack), duration)
	}

	if bodyErr == nil || !ex.cfg.CommitOnlyClock {
		if _, err := ex.clocks.Advance(bookkeeping, req.Kind, req.EntityID, req.Source); err != nil {
			errs = append(errs, fmt.Errorf("failed to advance %s clock: %w", req.Source, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		logger.WarnContext(ctx, "sync transaction failed",
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return result, err
	}

	logger.DebugContext(ctx, "sync transaction committed", slog.Duration("duration", duration))
	return result, nil
}

// Run вариант Execute для тел без результата
func (ex *Executor) Run(ctx context.Context, req Request, body func(ctx context.Context, tx *models.SyncTransaction) error) error {
	_, err := Execute(ctx, ex, req, func(ctx context.Context, tx *models.SyncTransaction) (struct{}, error) {
		return struct{}{}, body(ctx, tx)
	})
	return err
}

// runBody выполняет тело с таймаутом; паника тела превращается в ошибку
func runBody[T any](ctx context.Context, timeout time.Duration, tx *models.SyncTransaction, body Body[T]) (result T, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync body panicked: %v", r)
		}
	}()

	return body(ctx, tx)
}
