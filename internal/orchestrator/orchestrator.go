// Package orchestrator runs full synchronization passes over every mapped
// entity, kind by kind.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ordokr/LMS-sub004/internal/contentsync"
	"github.com/ordokr/LMS-sub004/internal/metrics"
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/platform"
	"github.com/ordokr/LMS-sub004/internal/storage"
)

// ErrSyncInProgress полная синхронизация уже выполняется
var ErrSyncInProgress = errors.New("full sync already in progress")

// SkipReasonOffline причина пропуска прохода при недоступности сети
const SkipReasonOffline = "offline"

// recentErrorsLimit сколько последних ошибок хранит Status
const recentErrorsLimit = 10

// ConnectivityProbe проверяет доступность внешних платформ
type ConnectivityProbe interface {
	IsOnline(ctx context.Context) bool
}

// ProbeFunc адаптер функции к ConnectivityProbe
type ProbeFunc func(ctx context.Context) bool

// IsOnline вызывает f(ctx)
func (f ProbeFunc) IsOnline(ctx context.Context) bool {
	return f(ctx)
}

// SyncChecker решает, нужна ли сущности синхронизация
type SyncChecker interface {
	NeedsSync(ctx context.Context, kind models.EntityKind, entityID string) (bool, error)
}

// Transferer переносит содержимое сущности
type Transferer interface {
	Transfer(ctx context.Context, kind models.EntityKind, entityID string, dir models.Direction) (*contentsync.Result, error)
}

// Enqueuer откладывает перенос в очередь повторов
type Enqueuer interface {
	Enqueue(ctx context.Context, kind models.EntityKind, entityID string, dir models.Direction, maxAttempts int) (*models.QueueItem, error)
}

// KindSummary итог прохода по одному типу сущностей
type KindSummary struct {
	Kind      models.EntityKind `json:"entity_type"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Queued    int               `json:"queued"`
	Success   bool              `json:"success"`
}

// Summary итог полной синхронизации
type Summary struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Kinds      []KindSummary `json:"kinds"`
	Errors     []string      `json:"errors"`
	Skipped    bool          `json:"skipped"`
	Success    bool          `json:"success"`
}

// clone возвращает копию итога, не разделяющую срезы с оригиналом
func (s *Summary) clone() *Summary {
	if s == nil {
		return nil
	}
	c := *s
	c.Kinds = append([]KindSummary(nil), s.Kinds...)
	c.Errors = append([]string(nil), s.Errors...)
	return &c
}

// Status текущее состояние оркестратора
type Status struct {
	LastStartedAt  time.Time `json:"last_started_at"`
	LastFinishedAt time.Time `json:"last_finished_at"`
	LastFullSync   time.Time `json:"last_full_sync"`
	LastSummary    *Summary  `json:"last_summary,omitempty"`
	RecentErrors   []string  `json:"recent_errors"`
	Running        bool      `json:"running"`
}

// Config параметры оркестратора
type Config struct {
	Direction models.Direction
}

// Orchestrator выполняет полную синхронизацию
type Orchestrator struct {
	mappings storage.MappingStorage
	meta     storage.MetadataStorage
	checker  SyncChecker
	transfer Transferer
	queue    Enqueuer
	probe    ConnectivityProbe
	logger   *slog.Logger
	metrics  *metrics.Registry
	now      func() time.Time

	// gate допускает только один проход одновременно
	gate sync.Mutex

	mu           sync.Mutex
	running      bool
	lastStarted  time.Time
	lastFinished time.Time
	lastSummary  *Summary
	recentErrors []string
	cfg          Config
}

// New создает оркестратор. queue и probe могут быть nil:
// без очереди сбои не откладываются, без пробы сеть считается доступной.
func New(mappings storage.MappingStorage, meta storage.MetadataStorage, checker SyncChecker, transfer Transferer,
	queue Enqueuer, probe ConnectivityProbe, cfg Config, logger *slog.Logger, m *metrics.Registry) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Direction == "" {
		cfg.Direction = models.DirectionCourseToForum
	}
	if probe == nil {
		probe = ProbeFunc(func(context.Context) bool { return true })
	}
	return &Orchestrator{
		mappings: mappings,
		meta:     meta,
		checker:  checker,
		transfer: transfer,
		queue:    queue,
		probe:    probe,
		logger:   logger,
		metrics:  m,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SyncAll выполняет полную синхронизацию. Параллельный вызов сразу
// получает ErrSyncInProgress. Сбой одного типа не прерывает остальные.
func (o *Orchestrator) SyncAll(ctx context.Context) (*Summary, error) {
	if !o.gate.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer o.gate.Unlock()

	summary := &Summary{StartedAt: o.now(), Kinds: []KindSummary{}, Errors: []string{}}
	o.setRunning(summary.StartedAt)

	if !o.probe.IsOnline(ctx) {
		summary.Skipped = true
		summary.SkipReason = SkipReasonOffline
		summary.FinishedAt = o.now()
		o.finish(ctx, summary)
		o.logger.WarnContext(ctx, "full sync skipped: platforms are offline")
		return summary, nil
	}

	o.logger.InfoContext(ctx, "starting full sync", slog.String("direction", string(o.cfg.Direction)))

	summary.Success = true
	for _, kind := range models.AllKinds() {
		ks, errs := o.syncKind(ctx, kind)
		summary.Kinds = append(summary.Kinds, ks)
		summary.Errors = append(summary.Errors, errs...)
		summary.Success = summary.Success && ks.Success
		o.metrics.RecordEntities(string(kind), ks.Succeeded, ks.Failed, ks.Skipped)
	}

	summary.FinishedAt = o.now()
	o.finish(ctx, summary)

	o.logger.InfoContext(ctx, "full sync finished",
		slog.Bool("success", summary.Success),
		slog.Int("errors", len(summary.Errors)),
		slog.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)))

	return summary, nil
}

func (o *Orchestrator) syncKind(ctx context.Context, kind models.EntityKind) (KindSummary, []string) {
	ks := KindSummary{Kind: kind}
	var errs []string

	fail := func(entityID string, err error) {
		ks.Failed++
		if entityID == "" {
			errs = append(errs, fmt.Sprintf("%s: %v", kind, err))
		} else {
			errs = append(errs, fmt.Sprintf("%s: %v", models.StateKey(kind, entityID), err))
		}
	}

	mappings, err := o.mappings.ListMappings(ctx, kind)
	if err != nil {
		fail("", fmt.Errorf("failed to list mappings: %w", err))
		return ks, errs
	}

	for _, m := range mappings {
		if ctx.Err() != nil {
			fail("", ctx.Err())
			break
		}

		needs, err := o.checker.NeedsSync(ctx, kind, m.EntityID)
		if err != nil {
			fail(m.EntityID, err)
			continue
		}
		if !needs {
			ks.Skipped++
			continue
		}

		if _, err := o.transfer.Transfer(ctx, kind, m.EntityID, o.cfg.Direction); err != nil {
			fail(m.EntityID, err)
			if o.deferToQueue(ctx, kind, m.EntityID, err) {
				ks.Queued++
			}
			continue
		}
		ks.Succeeded++
	}

	ks.Success = ks.Failed == 0
	return ks, errs
}

// deferToQueue откладывает перенос, упавший из-за транспорта
func (o *Orchestrator) deferToQueue(ctx context.Context, kind models.EntityKind, entityID string, cause error) bool {
	if o.queue == nil || !platform.IsTransport(cause) {
		return false
	}

	if _, err := o.queue.Enqueue(ctx, kind, entityID, o.cfg.Direction, 0); err != nil {
		o.logger.ErrorContext(ctx, "failed to queue sync retry",
			slog.String("entity_type", string(kind)),
			slog.String("entity_id", entityID),
			slog.Any("error", err))
		return false
	}
	return true
}

func (o *Orchestrator) setRunning(at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = true
	o.lastStarted = at
}

func (o *Orchestrator) finish(ctx context.Context, summary *Summary) {
	result := "success"
	switch {
	case summary.Skipped:
		result = "skipped"
	case !summary.Success:
		result = "failure"
	}
	o.metrics.RecordFullSync(result, summary.FinishedAt.Sub(summary.StartedAt))

	o.mu.Lock()
	o.running = false
	o.lastFinished = summary.FinishedAt
	o.lastSummary = summary.clone()
	o.recentErrors = append(o.recentErrors, summary.Errors...)
	if n := len(o.recentErrors); n > recentErrorsLimit {
		o.recentErrors = o.recentErrors[n-recentErrorsLimit:]
	}
	o.mu.Unlock()

	if summary.Skipped || o.meta == nil {
		return
	}
	if err := o.meta.SaveLastFullSync(context.WithoutCancel(ctx), summary.FinishedAt); err != nil {
		o.logger.WarnContext(ctx, "failed to save last full sync time", slog.Any("error", err))
	}
}

// Status возвращает состояние оркестратора и итог последнего прохода
func (o *Orchestrator) Status(ctx context.Context) Status {
	o.mu.Lock()
	st := Status{
		Running:        o.running,
		LastStartedAt:  o.lastStarted,
		LastFinishedAt: o.lastFinished,
		LastSummary:    o.lastSummary.clone(),
		RecentErrors:   append([]string{}, o.recentErrors...),
	}
	o.mu.Unlock()

	if o.meta != nil {
		last, err := o.meta.GetLastFullSync(ctx)
		if err != nil {
			o.logger.WarnContext(ctx, "failed to read last full sync time", slog.Any("error", err))
		}
		st.LastFullSync = last
	}

	return st
}
