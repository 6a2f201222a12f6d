// Package scheduler drives periodic full syncs, retry queue drains and
// housekeeping of the queue and the transaction log.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/orchestrator"
	"github.com/ordokr/LMS-sub004/internal/queue"
)

// FullSyncer выполняет полную синхронизацию
type FullSyncer interface {
	SyncAll(ctx context.Context) (*orchestrator.Summary, error)
}

// QueueWorker операции очереди повторов, нужные планировщику
type QueueWorker interface {
	Drain(ctx context.Context, batchSize int) (queue.DrainResult, error)
	Sweep(ctx context.Context, olderThan time.Duration) (requeued, failed int64, err error)
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
	Stats(ctx context.Context) (models.QueueStats, error)
}

// TransactionLog журнал транзакций, из которого удаляются старые записи
type TransactionLog interface {
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Config интервалы планировщика; нулевой интервал отключает цикл
type Config struct {
	FullSyncInterval     time.Duration
	DrainInterval        time.Duration
	MaintenanceInterval  time.Duration
	QueueRetention       time.Duration
	TransactionRetention time.Duration
}

// Scheduler периодически запускает фоновые задачи
type Scheduler struct {
	syncer FullSyncer
	queue  QueueWorker
	txlog  TransactionLog
	logger *slog.Logger
	now    func() time.Time
	cfg    Config
}

// New создает планировщик
func New(syncer FullSyncer, q QueueWorker, txlog TransactionLog, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		syncer: syncer,
		queue:  q,
		txlog:  txlog,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run запускает циклы и блокируется до отмены ctx
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	s.loop(ctx, g, "full_sync", s.cfg.FullSyncInterval, s.RunFullSync)
	s.loop(ctx, g, "queue_drain", s.cfg.DrainInterval, s.RunDrain)
	s.loop(ctx, g, "maintenance", s.cfg.MaintenanceInterval, s.RunMaintenance)

	s.logger.InfoContext(ctx, "scheduler started",
		slog.Duration("full_sync_interval", s.cfg.FullSyncInterval),
		slog.Duration("drain_interval", s.cfg.DrainInterval),
		slog.Duration("maintenance_interval", s.cfg.MaintenanceInterval))

	err := g.Wait()
	s.logger.Info("scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, g *errgroup.Group, name string, interval time.Duration, task func(context.Context)) {
	if interval <= 0 {
		s.logger.InfoContext(ctx, "scheduled task disabled", slog.String("task", name))
		return
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				task(ctx)
			}
		}
	})
}

// RunFullSync выполняет один проход полной синхронизации
func (s *Scheduler) RunFullSync(ctx context.Context) {
	summary, err := s.syncer.SyncAll(ctx)
	switch {
	case errors.Is(err, orchestrator.ErrSyncInProgress):
		s.logger.DebugContext(ctx, "scheduled full sync skipped: another pass is running")
	case err != nil:
		s.logger.ErrorContext(ctx, "scheduled full sync failed", slog.Any("error", err))
	case !summary.Success && !summary.Skipped:
		s.logger.WarnContext(ctx, "scheduled full sync finished with errors", slog.Int("errors", len(summary.Errors)))
	}
}

// RunDrain обрабатывает одну пачку очереди повторов
func (s *Scheduler) RunDrain(ctx context.Context) {
	if _, err := s.queue.Drain(ctx, 0); err != nil {
		s.logger.ErrorContext(ctx, "scheduled queue drain failed", slog.Any("error", err))
	}
}

// RunMaintenance возвращает зависшие элементы очереди, удаляет старые
// завершенные элементы и записи журнала транзакций, обновляет метрики очереди
func (s *Scheduler) RunMaintenance(ctx context.Context) {
	if _, _, err := s.queue.Sweep(ctx, 0); err != nil {
		s.logger.ErrorContext(ctx, "queue sweep failed", slog.Any("error", err))
	}

	if s.cfg.QueueRetention > 0 {
		if _, err := s.queue.Cleanup(ctx, s.cfg.QueueRetention); err != nil {
			s.logger.ErrorContext(ctx, "queue cleanup failed", slog.Any("error", err))
		}
	}

	if s.cfg.TransactionRetention > 0 && s.txlog != nil {
		n, err := s.txlog.DeleteFinishedBefore(ctx, s.now().Add(-s.cfg.TransactionRetention))
		if err != nil {
			s.logger.ErrorContext(ctx, "transaction log cleanup failed", slog.Any("error", err))
		} else if n > 0 {
			s.logger.InfoContext(ctx, "old sync transactions removed", slog.Int64("count", n))
		}
	}

	if _, err := s.queue.Stats(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh queue stats", slog.Any("error", err))
	}
}
