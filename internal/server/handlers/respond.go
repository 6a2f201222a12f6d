package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ordokr/LMS-sub004/internal/contentsync"
	"github.com/ordokr/LMS-sub004/internal/executor"
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/orchestrator"
	"github.com/ordokr/LMS-sub004/internal/platform"
	"github.com/ordokr/LMS-sub004/internal/queue"
	"github.com/ordokr/LMS-sub004/internal/storage"
	"github.com/ordokr/LMS-sub004/internal/syncstate"
	"github.com/ordokr/LMS-sub004/internal/validation"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

// maxBodySize ограничение размера тела запроса
const maxBodySize = 1 << 20

// maxListLimit верхняя граница параметра limit
const maxListLimit = 1000

// responder общие методы ответа для всех обработчиков
type responder struct {
	logger *slog.Logger
}

// sendJSON отправляет JSON ответ
func (h responder) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (h responder) sendError(w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	h.sendJSON(w, resp, statusCode)
}

// sendDomainError переводит ошибку движка в HTTP статус
func (h responder) sendDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed", slog.Any("error", err))
		h.sendError(w, "internal server error", status)
		return
	}

	h.logger.WarnContext(r.Context(), op+" rejected", slog.Int("status", status), slog.Any("error", err))
	h.sendError(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, syncstate.ErrNotFound),
		errors.Is(err, storage.ErrQueueItemNotFound),
		errors.Is(err, storage.ErrMappingNotFound),
		errors.Is(err, storage.ErrTransactionNotFound),
		errors.Is(err, contentsync.ErrUnmapped),
		errors.Is(err, platform.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, syncstate.ErrInvalidState),
		errors.Is(err, storage.ErrInvalidTransition),
		errors.Is(err, orchestrator.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, syncstate.ErrInvalidArgument),
		errors.Is(err, executor.ErrInvalidRequest),
		errors.Is(err, queue.ErrInvalidItem),
		errors.Is(err, validation.ErrInvalid),
		errors.Is(err, models.ErrUnknownValue):
		return http.StatusBadRequest
	case platform.IsTransport(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON читает и валидирует тело запроса
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", validation.ErrInvalid)
		}
		return fmt.Errorf("%w: invalid request body: %w", validation.ErrInvalid, err)
	}
	return validation.Struct(dst)
}

// pathEntity извлекает тип и идентификатор сущности из пути
func pathEntity(r *http.Request) (models.EntityKind, string, error) {
	kind, err := models.ParseEntityKind(r.PathValue("kind"))
	if err != nil {
		return "", "", err
	}

	id := r.PathValue("id")
	if err := validation.ValidateEntityID(id); err != nil {
		return "", "", err
	}

	return kind, id, nil
}

// queryLimit разбирает параметр limit; отсутствие параметра - def
func queryLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 || limit > maxListLimit {
		return 0, fmt.Errorf("%w: limit must be an integer between 0 and %d", validation.ErrInvalid, maxListLimit)
	}
	return limit, nil
}
