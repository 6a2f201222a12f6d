// Package contentsync copies entity content between the course and forum
// platforms as executor transactions.
package contentsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ordokr/LMS-sub004/internal/executor"
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/platform"
	"github.com/ordokr/LMS-sub004/internal/storage"
)

// ErrUnmapped у сущности нет идентификатора на нужной платформе
var ErrUnmapped = errors.New("entity is not mapped to the platform")

// IsPermanent сообщает, что повтор переноса не поможет без вмешательства оператора.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnmapped) ||
		errors.Is(err, platform.ErrNotFound) ||
		errors.Is(err, executor.ErrInvalidRequest)
}

// Result итог одного переноса
type Result struct {
	Kind      models.EntityKind `json:"entity_type"`
	EntityID  string            `json:"entity_id"`
	Direction models.Direction  `json:"direction"`
	SourceID  string            `json:"source_remote_id"`
	TargetID  string            `json:"target_remote_id"`
	Bytes     int               `json:"bytes"`
}

// Syncer переносит содержимое сущностей между платформами
type Syncer struct {
	mappings storage.MappingStorage
	adapters map[models.System]platform.Adapter
	exec     *executor.Executor
	logger   *slog.Logger
}

// New создает Syncer для пары платформ
func New(mappings storage.MappingStorage, course, forum platform.Adapter, exec *executor.Executor, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		mappings: mappings,
		adapters: map[models.System]platform.Adapter{
			models.SystemCourse: course,
			models.SystemForum:  forum,
		},
		exec:   exec,
		logger: logger,
	}
}

// Transfer копирует содержимое сущности в направлении dir.
// Сам перенос выполняется как транзакция исполнителя: после попытки
// продвигаются часы системы-источника.
func (s *Syncer) Transfer(ctx context.Context, kind models.EntityKind, entityID string, dir models.Direction) (*Result, error) {
	if _, err := models.ParseDirection(string(dir)); err != nil {
		return nil, fmt.Errorf("%w: %w", executor.ErrInvalidRequest, err)
	}

	mapping, err := s.mappings.GetMapping(ctx, kind, entityID)
	if err != nil {
		if errors.Is(err, storage.ErrMappingNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnmapped, models.StateKey(kind, entityID))
		}
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}

	res := &Result{
		Kind:      kind,
		EntityID:  entityID,
		Direction: dir,
		SourceID:  mapping.RemoteID(dir.Source()),
		TargetID:  mapping.RemoteID(dir.Target()),
	}
	if res.SourceID == "" {
		return nil, fmt.Errorf("%w: %s has no %s id", ErrUnmapped, models.StateKey(kind, entityID), dir.Source())
	}
	if res.TargetID == "" {
		return nil, fmt.Errorf("%w: %s has no %s id", ErrUnmapped, models.StateKey(kind, entityID), dir.Target())
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer payload: %w", err)
	}

	req := executor.Request{
		Kind:      kind,
		EntityID:  entityID,
		Operation: models.OperationUpdate,
		Source:    dir.Source(),
		Target:    dir.Target(),
		Payload:   payload,
	}

	n, err := executor.Execute(ctx, s.exec, req, func(ctx context.Context, _ *models.SyncTransaction) (int, error) {
		return s.copy(ctx, res)
	})
	res.Bytes = n
	if err != nil {
		return res, err
	}

	s.logger.DebugContext(ctx, "content transferred",
		slog.String("entity_type", string(kind)),
		slog.String("entity_id", entityID),
		slog.String("direction", string(dir)),
		slog.Int("bytes", n))

	return res, nil
}

// Fetch читает текущее содержимое сущности на обеих платформах.
// Для платформы без идентификатора в маппинге возвращается nil.
func (s *Syncer) Fetch(ctx context.Context, kind models.EntityKind, entityID string) (course, forum []byte, err error) {
	mapping, err := s.mappings.GetMapping(ctx, kind, entityID)
	if err != nil {
		if errors.Is(err, storage.ErrMappingNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnmapped, models.StateKey(kind, entityID))
		}
		return nil, nil, fmt.Errorf("failed to get mapping: %w", err)
	}

	if course, err = s.fetchSide(ctx, models.SystemCourse, mapping.CourseRemoteID); err != nil {
		return nil, nil, err
	}
	if forum, err = s.fetchSide(ctx, models.SystemForum, mapping.ForumRemoteID); err != nil {
		return nil, nil, err
	}

	return course, forum, nil
}

func (s *Syncer) fetchSide(ctx context.Context, system models.System, remoteID string) ([]byte, error) {
	if remoteID == "" {
		return nil, nil
	}
	content, err := s.adapters[system].GetContent(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	// пустое содержимое на платформе все равно присутствует
	return append([]byte{}, content...), nil
}

func (s *Syncer) copy(ctx context.Context, res *Result) (int, error) {
	src := s.adapters[res.Direction.Source()]
	dst := s.adapters[res.Direction.Target()]

	content, err := src.GetContent(ctx, res.SourceID)
	if err != nil {
		return 0, fmt.Errorf("read from %s: %w", res.Direction.Source(), err)
	}

	if err := dst.UpdateContent(ctx, res.TargetID, content); err != nil {
		return 0, fmt.Errorf("write to %s: %w", res.Direction.Target(), err)
	}

	return len(content), nil
}
