package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/storage"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

// MappingHandler сопоставление сущностей с объектами на платформах
type MappingHandler struct {
	responder
	store storage.MappingStorage
	now   func() time.Time
}

// NewMappingHandler создает handler сопоставлений
func NewMappingHandler(logger *slog.Logger, store storage.MappingStorage) *MappingHandler {
	return &MappingHandler{
		responder: responder{logger: logger},
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Put обрабатывает PUT /api/v1/mappings/{kind}/{id}
func (h *MappingHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, id, err := pathEntity(r)
	if err != nil {
		h.sendDomainError(w, r, "put mapping", err)
		return
	}

	var req api.MappingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendDomainError(w, r, "put mapping", err)
		return
	}

	now := h.now()
	mapping := &models.EntityMapping{
		Kind:           kind,
		EntityID:       id,
		CourseRemoteID: req.CourseRemoteID,
		ForumRemoteID:  req.ForumRemoteID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	existing, err := h.store.GetMapping(ctx, kind, id)
	switch {
	case err == nil:
		mapping.CreatedAt = existing.CreatedAt
	case !errors.Is(err, storage.ErrMappingNotFound):
		h.sendDomainError(w, r, "put mapping", err)
		return
	}

	if err := h.store.UpsertMapping(ctx, mapping); err != nil {
		h.sendDomainError(w, r, "put mapping", err)
		return
	}

	h.logger.InfoContext(ctx, "entity mapping saved",
		slog.String("entity_type", string(kind)),
		slog.String("entity_id", id))

	h.sendJSON(w, mapping, http.StatusOK)
}

// Get обрабатывает GET /api/v1/mappings/{kind}/{id}
func (h *MappingHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind, id, err := pathEntity(r)
	if err != nil {
		h.sendDomainError(w, r, "get mapping", err)
		return
	}

	mapping, err := h.store.GetMapping(r.Context(), kind, id)
	if err != nil {
		h.sendDomainError(w, r, "get mapping", err)
		return
	}

	h.sendJSON(w, mapping, http.StatusOK)
}

// List обрабатывает GET /api/v1/mappings/{kind}
func (h *MappingHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseEntityKind(r.PathValue("kind"))
	if err != nil {
		h.sendDomainError(w, r, "list mappings", err)
		return
	}

	mappings, err := h.store.ListMappings(r.Context(), kind)
	if err != nil {
		h.sendDomainError(w, r, "list mappings", err)
		return
	}
	if mappings == nil {
		mappings = []*models.EntityMapping{}
	}

	h.sendJSON(w, mappings, http.StatusOK)
}
