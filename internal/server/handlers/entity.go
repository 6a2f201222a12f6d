package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ordokr/LMS-sub004/internal/contentsync"
	"github.com/ordokr/LMS-sub004/internal/executor"
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/storage"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

// StateService состояние синхронизации сущностей
type StateService interface {
	Get(ctx context.Context, kind models.EntityKind, entityID string) (*models.EntityVersionState, error)
	List(ctx context.Context, filter models.StateFilter) ([]*models.EntityVersionState, error)
	DetectConflicts(ctx context.Context, kind models.EntityKind, entityID string, courseData, forumData []byte) (bool, error)
	Resolve(ctx context.Context, kind models.EntityKind, entityID, strategy string) (*models.EntityVersionState, error)
}

// ContentService перенос и чтение содержимого на платформах
type ContentService interface {
	Transfer(ctx context.Context, kind models.EntityKind, entityID string, dir models.Direction) (*contentsync.Result, error)
	Fetch(ctx context.Context, kind models.EntityKind, entityID string) (course, forum []byte, err error)
}

// MutationRunner выполняет мутацию как транзакцию синхронизации
type MutationRunner interface {
	Run(ctx context.Context, req executor.Request, body func(ctx context.Context, tx *models.SyncTransaction) error) error
}

// EntityHandler операции над отдельными сущностями
type EntityHandler struct {
	responder
	states  StateService
	content ContentService
	runner  MutationRunner
	txlog   storage.TransactionStorage
}

// NewEntityHandler создает handler сущностей
func NewEntityHandler(logger *slog.Logger, states StateService, content ContentService, runner MutationRunner, txlog storage.TransactionStorage) *EntityHandler {
	return &EntityHandler{
		responder: responder{logger: logger},
		states:    states,
		content:   content,
		runner:    runner,
		txlog:     txlog,
	}
}

// List обрабатывает GET /api/v1/entities?entity_type=&status=&limit=
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter models.StateFilter

	if raw := q.Get("entity_type"); raw != "" {
		kind, err := models.ParseEntityKind(raw)
		if err != nil {
			h.sendDomainError(w, r, "list entities", err)
			return
		}
		filter.Kind = kind
	}
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseSyncStatus(raw)
		if err != nil {
			h.sendDomainError(w, r, "list entities", err)
			return
		}
		filter.Status = status
	}
	limit, err := queryLimit(r, 100)
	if err != nil {
		h.sendDomainError(w, r, "list entities", err)
		return
	}
	filter.Limit = limit

	states, err := h.states.List(r.Context(), filter)
	if err != nil {
		h.sendDomainError(w, r, "list entities", err)
		return
	}
	if states == nil {
		states = []*models.EntityVersionState{}
	}

	h.sendJSON(w, states, http.StatusOK)
}

// Get обрабатывает GET /api/v1/entities/{kind}/{id}
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind, id, err := pathEntity(r)
	if err != nil {
		h.sendDomainError(w, r, "get entity", err)
		return
	}

	state, err := h.states.Get(r.Context(), kind, id)
	if err != nil {
		h.sendDomainError(w, r, "get entity", err)
		return
	}

	h.sendJSON(w, state, http.StatusOK)
}

// Detect обрабатывает POST /api/v1/entities/{kind}/{id}/detect
// Без тела содержимое читается с платформ.
func (h *EntityHandler) Detect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, id, err := pathEntity(r)
	if err != nil {
		h.sendDomainError(w, r, "detect conflicts", err)
		return
	}

	var req api.DetectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.sendDomainError(w, r, "detect conflicts", err)
			return
		}
	}

	// nil означает, что содержимое стороны неизвестно
	var course, forum []byte
	if req.Course == nil && req.Forum == nil {
		course, forum, err = h.content.Fetch(ctx, kind, id)
		if err != nil {
			h.sendDomainError(w, r, "fetch content", err)
			return
		}
	} else {
		if req.Course != nil {
			course = []byte(*req.Course)
		}
		if req.Forum != nil {
			forum = []byte(*req.Forum)
		}
	}

	conflict, err := h.states.DetectConflicts(ctx, kind, id, course, forum)
	if err != nil {
		h.sendDomainError(w, r, "detect conflicts", err)
		return
	}

	state, err := h.states.Get(ctx, kind, id)
	if err != nil {
		h.sendDomainError(w, r, "detect conflicts", err)
		return
	}

	h.sendJSON(w, api.DetectResponse{
		Kind:     string(kind),
		EntityID: id,
		Status:   string(state.Status),
		Conflict: conflict,
	}, http.StatusOK)
}

// RecordEvent обрабатывает POST /api/v1/entities/{kind}/{id}/events
// Изменение, наблюдавшееся во внешней системе, записывается как
// транзакция без тела: часы системы-источника продвигаются.
func (h *EntityHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, id, err := pathEntity(r)
	if err != nil {
		h.sendDomainError(w, r, "record event", err)
		return
	}

	var req api.EventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendDomainError(w, r, "record event", err)
		return
	}
	if req.Operation == "" {
		req.Operation = string(models.OperationUpdate)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		h.sendDomainError(w, r, "record event", err)
		return
	}

	mutation := executor.Request{
		Kind:      kind,
		EntityID:  id,
		Operation: models.Operation(req.Operation),
		Source:    models.System(req.Source),
		Target:    models.SystemLocal,
		Payload:   payload,
	}
	err = h.runner.Run(ctx, mutation, func(context.Context, *models.SyncTransaction) error { return nil })
	if err != nil {
		h.sendDomainError(w, r, "record event", err)
		return
	}

	state, err := h.states.Get(ctx, kind, id)
	if err != nil {
		h.sendDomainError(w, r, "record event", err)
		return
	}

	h.sendJSON(w, state, http.StatusAccepted)
}

// Resolve обрабатывает POST /api/v1/entities/{kind}/{id}/resolve
func (h *EntityHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, id, err := pathEntity(r)
	if err != nil {
		h.sendDomainError(w, r, "resolve conflict", err)
		return
	}

	var req api.ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendDomainError(w, r, "resolve conflict", err)
		return
	}

	state, err := h.states.Resolve(ctx, kind, id, req.Strategy)
	if err != nil {
		h.sendDomainError(w, r, "resolve conflict", err)
		return
	}

	operator, _ := OperatorFromContext(ctx)
	h.logger.InfoContext(ctx, "conflict resolved by operator",
		slog.String("operator", operator),
		slog.String("entity", state.Key()),
		slog.String("strategy", req.Strategy))

	h.sendJSON(w, state, http.StatusOK)
}

// Transfer обрабатывает POST /api/v1/entities/{kind}/{id}/transfer
func (h *EntityHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, id, err := pathEntity(r)
	if err != nil {
		h.sendDomainError(w, r, "transfer content", err)
		return
	}

	var req api.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendDomainError(w, r, "transfer content", err)
		return
	}

	res, err := h.content.Transfer(ctx, kind, id, models.Direction(req.Direction))
	if err != nil {
		h.sendDomainError(w, r, "transfer content", err)
		return
	}

	h.sendJSON(w, api.TransferResponse{
		Kind:      string(res.Kind),
		EntityID:  res.EntityID,
		Direction: string(res.Direction),
		Bytes:     res.Bytes,
	}, http.StatusOK)
}

// Transactions обрабатывает GET /api/v1/entities/{kind}/{id}/transactions
func (h *EntityHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	kind, id, err := pathEntity(r)
	if err != nil {
		h.sendDomainError(w, r, "list transactions", err)
		return
	}

	limit, err := queryLimit(r, 50)
	if err != nil {
		h.sendDomainError(w, r, "list transactions", err)
		return
	}

	txs, err := h.txlog.ListTransactions(r.Context(), kind, id, limit)
	if err != nil {
		h.sendDomainError(w, r, "list transactions", err)
		return
	}
	if txs == nil {
		txs = []*models.SyncTransaction{}
	}

	h.sendJSON(w, txs, http.StatusOK)
}
