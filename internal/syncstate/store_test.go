package syncstate

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/storage"
)

// memStore потокобезопасное in-memory хранилище состояний для тестов
type memStore struct {
	states     map[string]*models.EntityVersionState
	failUpsert error
	mu         sync.Mutex
	gets       int
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]*models.EntityVersionState)}
}

func (s *memStore) GetState(_ context.Context, kind models.EntityKind, entityID string) (*models.EntityVersionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++

	state, ok := s.states[models.StateKey(kind, entityID)]
	if !ok {
		return nil, storage.ErrStateNotFound
	}
	return state.Clone(), nil
}

func (s *memStore) UpsertState(_ context.Context, state *models.EntityVersionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpsert != nil {
		return s.failUpsert
	}
	s.states[state.Key()] = state.Clone()
	return nil
}

func (s *memStore) ListStates(_ context.Context, filter models.StateFilter) ([]*models.EntityVersionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.EntityVersionState, 0, len(s.states))
	for _, state := range s.states {
		if filter.Kind != "" && state.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && state.Status != filter.Status {
			continue
		}
		out = append(out, state.Clone())
	}
	return out, nil
}

func (s *memStore) put(state *models.EntityVersionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Key()] = state.Clone()
}

func (s *memStore) stored(kind models.EntityKind, entityID string) *models.EntityVersionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[models.StateKey(kind, entityID)]
	if !ok {
		return nil
	}
	return state.Clone()
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
