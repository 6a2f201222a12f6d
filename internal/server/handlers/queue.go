package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/queue"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

// QueueService операции очереди повторов
type QueueService interface {
	Enqueue(ctx context.Context, kind models.EntityKind, entityID string, dir models.Direction, maxAttempts int) (*models.QueueItem, error)
	Get(ctx context.Context, id string) (*models.QueueItem, error)
	List(ctx context.Context, status models.QueueStatus, limit int) ([]*models.QueueItem, error)
	Stats(ctx context.Context) (models.QueueStats, error)
	Retry(ctx context.Context, id string) (*models.QueueItem, error)
	Drain(ctx context.Context, batchSize int) (queue.DrainResult, error)
}

// QueueHandler управление очередью повторов
type QueueHandler struct {
	responder
	queue QueueService
}

// NewQueueHandler создает handler очереди
func NewQueueHandler(logger *slog.Logger, q QueueService) *QueueHandler {
	return &QueueHandler{
		responder: responder{logger: logger},
		queue:     q,
	}
}

// Enqueue обрабатывает POST /api/v1/queue
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendDomainError(w, r, "enqueue", err)
		return
	}

	kind, err := models.ParseEntityKind(req.Kind)
	if err != nil {
		h.sendDomainError(w, r, "enqueue", err)
		return
	}

	item, err := h.queue.Enqueue(r.Context(), kind, req.EntityID, models.Direction(req.Direction), req.MaxAttempts)
	if err != nil {
		h.sendDomainError(w, r, "enqueue", err)
		return
	}

	h.sendJSON(w, item, http.StatusCreated)
}

// List обрабатывает GET /api/v1/queue?status=&limit=
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	var status models.QueueStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseQueueStatus(raw)
		if err != nil {
			h.sendDomainError(w, r, "list queue", err)
			return
		}
		status = parsed
	}

	limit, err := queryLimit(r, 100)
	if err != nil {
		h.sendDomainError(w, r, "list queue", err)
		return
	}

	items, err := h.queue.List(r.Context(), status, limit)
	if err != nil {
		h.sendDomainError(w, r, "list queue", err)
		return
	}
	if items == nil {
		items = []*models.QueueItem{}
	}

	h.sendJSON(w, items, http.StatusOK)
}

// Get обрабатывает GET /api/v1/queue/{id}
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.queue.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.sendDomainError(w, r, "get queue item", err)
		return
	}

	h.sendJSON(w, item, http.StatusOK)
}

// Stats обрабатывает GET /api/v1/queue/stats
func (h *QueueHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		h.sendDomainError(w, r, "queue stats", err)
		return
	}

	resp := make(map[string]int, len(stats))
	for status, n := range stats {
		resp[string(status)] = n
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// Retry обрабатывает POST /api/v1/queue/{id}/retry
func (h *QueueHandler) Retry(w http.ResponseWriter, r *http.Request) {
	item, err := h.queue.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		h.sendDomainError(w, r, "retry queue item", err)
		return
	}

	operator, _ := OperatorFromContext(r.Context())
	h.logger.InfoContext(r.Context(), "queue item re-armed by operator",
		slog.String("operator", operator),
		slog.String("item_id", item.ID))

	h.sendJSON(w, item, http.StatusOK)
}

// Drain обрабатывает POST /api/v1/queue/drain
func (h *QueueHandler) Drain(w http.ResponseWriter, r *http.Request) {
	res, err := h.queue.Drain(r.Context(), 0)
	if err != nil {
		h.sendDomainError(w, r, "drain queue", err)
		return
	}

	h.sendJSON(w, api.DrainResponse{
		Claimed:   res.Claimed,
		Completed: res.Completed,
		Retried:   res.Retried,
		Failed:    res.Failed,
		Released:  res.Released,
	}, http.StatusOK)
}
