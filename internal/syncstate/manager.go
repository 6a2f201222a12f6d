// Package syncstate tracks the causal sync posture of every entity and
// reconciles conflicts between the course and forum platforms.
package syncstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ordokr/LMS-sub004/internal/metrics"
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/storage"
	"github.com/ordokr/LMS-sub004/internal/vclock"
)

// Manager владеет кэшем состояний сущностей и сериализует каждое
// чтение-изменение-запись векторов одной блокировкой.
type Manager struct {
	store     storage.StateStorage
	logger    *slog.Logger
	metrics   *metrics.Registry
	cache     *stateCache
	now       func() time.Time
	replicaID string
	mu        sync.Mutex
}

// NewManager создает менеджер состояний.
// replicaID должен быть стабильным между перезапусками процесса.
func NewManager(store storage.StateStorage, replicaID string, logger *slog.Logger, m *metrics.Registry) (*Manager, error) {
	if replicaID == "" {
		return nil, fmt.Errorf("%w: replica id is required", ErrInvalidArgument)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:     store,
		replicaID: replicaID,
		logger:    logger,
		metrics:   m,
		cache:     newStateCache(),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// ReplicaID возвращает идентификатор реплики, от имени которой увеличиваются векторы.
func (m *Manager) ReplicaID() string {
	return m.replicaID
}

// Get возвращает копию состояния сущности или ErrNotFound.
func (m *Manager) Get(ctx context.Context, kind models.EntityKind, entityID string) (*models.EntityVersionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.load(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, models.StateKey(kind, entityID))
	}

	return state, nil
}

// List возвращает состояния из хранилища по фильтру.
func (m *Manager) List(ctx context.Context, filter models.StateFilter) ([]*models.EntityVersionState, error) {
	states, err := m.store.ListStates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	return states, nil
}

// NeedsSync сообщает, ожидает ли сущность синхронизации.
// Неизвестная сущность считается требующей синхронизации.
func (m *Manager) NeedsSync(ctx context.Context, kind models.EntityKind, entityID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.load(ctx, kind, entityID)
	if err != nil {
		return false, err
	}
	if state == nil {
		return true, nil
	}

	return state.Status == models.StatusPendingSync, nil
}

// DetectConflicts проверяет, разошлись ли векторы курса и форума.
// Для новой сущности вектор стороны увеличивается только если передано ее содержимое.
func (m *Manager) DetectConflicts(ctx context.Context, kind models.EntityKind, entityID string, courseData, forumData []byte) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("%w: entity kind %q", ErrInvalidArgument, kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.load(ctx, kind, entityID)
	if err != nil {
		return false, err
	}

	dirty := false
	if state == nil {
		state = models.NewEntityVersionState(kind, entityID, m.now())
		if courseData != nil {
			state.Course.Increment(m.replicaID)
		}
		if forumData != nil {
			state.Forum.Increment(m.replicaID)
		}
		dirty = true
	}

	conflict := state.Course.Compare(state.Forum) == vclock.Concurrent
	if conflict && state.Status != models.StatusConflict {
		state.Status = models.StatusConflict
		dirty = true
	}

	if dirty {
		if err := m.persist(ctx, state); err != nil {
			return false, err
		}
	}

	if conflict {
		m.metrics.RecordConflict(string(kind))
		m.logger.WarnContext(ctx, "conflict detected",
			slog.String("entity_type", string(kind)),
			slog.String("entity_id", entityID))
	}

	return conflict, nil
}

// Advance увеличивает вектор системы source от имени этой реплики,
// пересчитывает статус и сохраняет состояние. Вызывается исполнителем транзакций.
func (m *Manager) Advance(ctx context.Context, kind models.EntityKind, entityID string, source models.System) (*models.EntityVersionState, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: entity kind %q", ErrInvalidArgument, kind)
	}

	return m.update(ctx, kind, entityID, func(state *models.EntityVersionState) error {
		vec := state.Vector(source)
		if vec == nil {
			return fmt.Errorf("%w: system %q", ErrInvalidArgument, source)
		}
		vec.Increment(m.replicaID)
		state.Status = DetermineStatus(state.Course, state.Forum, state.Local)
		state.LastSync = m.now()
		return nil
	})
}

// Touch обновляет время последней синхронизации сущности.
func (m *Manager) Touch(ctx context.Context, kind models.EntityKind, entityID string) error {
	_, err := m.update(ctx, kind, entityID, func(state *models.EntityVersionState) error {
		state.LastSync = m.now()
		return nil
	})
	return err
}

// MarkError переводит сущность в статус Error (неустранимый сбой синхронизации).
func (m *Manager) MarkError(ctx context.Context, kind models.EntityKind, entityID string) error {
	_, err := m.update(ctx, kind, entityID, func(state *models.EntityVersionState) error {
		state.Status = models.StatusError
		return nil
	})
	return err
}

// Resolve сводит конфликт по стратегии. Проверки выполняются по порядку:
// нет состояния - ErrNotFound, статус не Conflict - ErrInvalidState,
// неизвестная стратегия - ErrInvalidArgument. При ошибке состояние не меняется.
func (m *Manager) Resolve(ctx context.Context, kind models.EntityKind, entityID, strategy string) (*models.EntityVersionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.StateKey(kind, entityID)

	state, err := m.load(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if state.Status != models.StatusConflict {
		return nil, fmt.Errorf("%w: %s is %s, not in conflict", ErrInvalidState, key, state.Status)
	}

	st, err := ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}

	st.apply(state)
	state.Status = models.StatusSynced
	state.LastSync = m.now()

	if err := m.persist(ctx, state); err != nil {
		return nil, err
	}

	m.metrics.RecordResolution(string(st))
	m.logger.InfoContext(ctx, "conflict resolved",
		slog.String("entity_type", string(kind)),
		slog.String("entity_id", entityID),
		slog.String("strategy", string(st)))

	return state.Clone(), nil
}

// update загружает или создает состояние, применяет fn к копии и сохраняет ее.
// Кэш обновляется только после успешной записи.
func (m *Manager) update(ctx context.Context, kind models.EntityKind, entityID string, fn func(*models.EntityVersionState) error) (*models.EntityVersionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.load(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = models.NewEntityVersionState(kind, entityID, m.now())
	}

	if err := fn(state); err != nil {
		return nil, err
	}

	if err := m.persist(ctx, state); err != nil {
		return nil, err
	}

	m.logger.DebugContext(ctx, "entity state updated",
		slog.String("entity_type", string(kind)),
		slog.String("entity_id", entityID),
		slog.String("status", string(state.Status)))

	return state.Clone(), nil
}

// load возвращает копию состояния: кэш, затем хранилище. nil - состояние не отслеживается.
// Вызывается под m.mu.
func (m *Manager) load(ctx context.Context, kind models.EntityKind, entityID string) (*models.EntityVersionState, error) {
	if state, ok := m.cache.get(models.StateKey(kind, entityID)); ok {
		return state, nil
	}

	state, err := m.store.GetState(ctx, kind, entityID)
	if err != nil {
		if errors.Is(err, storage.ErrStateNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load state %s: %w", models.StateKey(kind, entityID), err)
	}

	m.cache.put(state)
	return state, nil
}

// persist записывает состояние и затем кладет его в кэш. Вызывается под m.mu.
func (m *Manager) persist(ctx context.Context, state *models.EntityVersionState) error {
	if err := m.store.UpsertState(ctx, state); err != nil {
		return fmt.Errorf("failed to persist state %s: %w", state.Key(), err)
	}
	m.cache.put(state)
	return nil
}
