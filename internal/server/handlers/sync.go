package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/orchestrator"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

// FullSyncer полная синхронизация и ее состояние
type FullSyncer interface {
	SyncAll(ctx context.Context) (*orchestrator.Summary, error)
	Status(ctx context.Context) orchestrator.Status
}

// QueueCounter счетчики очереди повторов
type QueueCounter interface {
	Stats(ctx context.Context) (models.QueueStats, error)
}

// SyncHandler запуск полной синхронизации и ее статус
type SyncHandler struct {
	responder
	syncer FullSyncer
	queue  QueueCounter
}

// NewSyncHandler создает handler полной синхронизации
func NewSyncHandler(logger *slog.Logger, syncer FullSyncer, queue QueueCounter) *SyncHandler {
	return &SyncHandler{
		responder: responder{logger: logger},
		syncer:    syncer,
		queue:     queue,
	}
}

// RunSync обрабатывает POST /api/v1/sync
// Выполняет полный проход синхронно; параллельный запуск - 409.
func (h *SyncHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	operator, _ := OperatorFromContext(ctx)
	h.logger.InfoContext(ctx, "full sync requested", slog.String("operator", operator))

	summary, err := h.syncer.SyncAll(ctx)
	if err != nil {
		h.sendDomainError(w, r, "full sync", err)
		return
	}

	h.sendJSON(w, toAPISummary(summary), http.StatusOK)
}

// Status обрабатывает GET /api/v1/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	st := h.syncer.Status(ctx)
	resp := api.SyncStatus{
		Running:        st.Running,
		LastStartedAt:  st.LastStartedAt,
		LastFinishedAt: st.LastFinishedAt,
		LastFullSync:   st.LastFullSync,
		RecentErrors:   st.RecentErrors,
		Queue:          map[string]int{},
	}
	if st.LastSummary != nil {
		resp.LastSummary = toAPISummary(st.LastSummary)
	}

	stats, err := h.queue.Stats(ctx)
	if err != nil {
		h.sendDomainError(w, r, "queue stats", err)
		return
	}
	for status, n := range stats {
		resp.Queue[string(status)] = n
	}

	h.sendJSON(w, resp, http.StatusOK)
}

func toAPISummary(s *orchestrator.Summary) *api.SyncSummary {
	out := &api.SyncSummary{
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		SkipReason: s.SkipReason,
		Kinds:      make([]api.KindSummary, 0, len(s.Kinds)),
		Errors:     s.Errors,
		Skipped:    s.Skipped,
		Success:    s.Success,
	}
	for _, k := range s.Kinds {
		out.Kinds = append(out.Kinds, api.KindSummary{
			Kind:      string(k.Kind),
			Succeeded: k.Succeeded,
			Failed:    k.Failed,
			Skipped:   k.Skipped,
			Queued:    k.Queued,
			Success:   k.Success,
		})
	}
	return out
}
