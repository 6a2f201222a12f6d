package syncstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordokr/LMS-sub004/internal/metrics"
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/vclock"
)

func newTestManager(t *testing.T, store *memStore, replicaID string) *Manager {
	m, err := NewManager(store, replicaID, setupTestLogger(), metrics.NewRegistry())
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }
	return m
}

// conflictState сохраняет состояние, где курс и форум изменены разными репликами
func conflictState(store *memStore, kind models.EntityKind, id string) {
	state := models.NewEntityVersionState(kind, id, time.Now())
	state.Course = vclock.VersionVector{"node-a": 2, "node-b": 1}
	state.Forum = vclock.VersionVector{"node-a": 1, "node-b": 3}
	state.Status = models.StatusConflict
	store.put(state)
}

func TestNewManager_RequiresReplicaID(t *testing.T) {
	_, err := NewManager(newMemStore(), "", setupTestLogger(), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManager_NeedsSync(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store, "node-a")

	t.Run("unseen entity needs sync", func(t *testing.T) {
		needs, err := m.NeedsSync(ctx, models.KindCourse, "never-touched")
		require.NoError(t, err)
		assert.True(t, needs)
	})

	t.Run("identical vectors are synced", func(t *testing.T) {
		state := models.NewEntityVersionState(models.KindCourse, "synced", time.Now())
		v := vclock.VersionVector{"node-a": 3}
		state.Course, state.Forum, state.Local = v.Clone(), v.Clone(), v.Clone()
		state.Status = DetermineStatus(state.Course, state.Forum, state.Local)
		store.put(state)

		needs, err := m.NeedsSync(ctx, models.KindCourse, "synced")
		require.NoError(t, err)
		assert.False(t, needs)
	})

	t.Run("conflict does not need sync", func(t *testing.T) {
		conflictState(store, models.KindTopic, "c")

		needs, err := m.NeedsSync(ctx, models.KindTopic, "c")
		require.NoError(t, err)
		assert.False(t, needs)
	})

	t.Run("pending after advance", func(t *testing.T) {
		_, err := m.Advance(ctx, models.KindPost, "p", models.SystemLocal)
		require.NoError(t, err)

		needs, err := m.NeedsSync(ctx, models.KindPost, "p")
		require.NoError(t, err)
		assert.True(t, needs)
	})
}

func TestManager_LoadUsesCache(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store, "node-a")
	conflictState(store, models.KindTopic, "1")

	_, err := m.Get(ctx, models.KindTopic, "1")
	require.NoError(t, err)
	_, err = m.NeedsSync(ctx, models.KindTopic, "1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.gets)
	assert.Equal(t, 1, m.cache.len())
}

func TestManager_DetectConflicts_NewEntity(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		courseData   []byte
		forumData    []byte
		wantCourse   uint64
		wantForum    uint64
		wantConflict bool
	}{
		{"no payloads", nil, nil, 0, 0, false},
		{"course only", []byte("c"), nil, 1, 0, false},
		{"forum only", nil, []byte("f"), 0, 1, false},
		{"both sides from one replica", []byte("c"), []byte("f"), 1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			m := newTestManager(t, store, "node-a")

			conflict, err := m.DetectConflicts(ctx, models.KindTopic, "42", tt.courseData, tt.forumData)
			require.NoError(t, err)
			assert.Equal(t, tt.wantConflict, conflict)

			stored := store.stored(models.KindTopic, "42")
			require.NotNil(t, stored, "new state must be persisted")
			assert.Equal(t, tt.wantCourse, stored.Course.Get("node-a"))
			assert.Equal(t, tt.wantForum, stored.Forum.Get("node-a"))
			assert.Equal(t, models.StatusPendingSync, stored.Status)
		})
	}
}

func TestManager_DetectConflicts_ExistingDivergence(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store, "node-a")

	state := models.NewEntityVersionState(models.KindPost, "9", time.Now())
	state.Course = vclock.VersionVector{"node-a": 1}
	state.Forum = vclock.VersionVector{"node-b": 1}
	store.put(state)

	conflict, err := m.DetectConflicts(ctx, models.KindPost, "9", []byte("ignored"), nil)
	require.NoError(t, err)
	assert.True(t, conflict)

	stored := store.stored(models.KindPost, "9")
	assert.Equal(t, models.StatusConflict, stored.Status)
	// существующее состояние не продвигается
	assert.Equal(t, uint64(1), stored.Course.Get("node-a"))
}

func TestManager_DetectConflicts_RejectsUnknownKind(t *testing.T) {
	m := newTestManager(t, newMemStore(), "node-a")
	_, err := m.DetectConflicts(context.Background(), models.EntityKind("quiz"), "1", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManager_Advance(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store, "node-a")

	state, err := m.Advance(ctx, models.KindModule, "m1", models.SystemCourse)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.Course.Get("node-a"))
	assert.Equal(t, models.StatusPendingSync, state.Status)

	state, err = m.Advance(ctx, models.KindModule, "m1", models.SystemCourse)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), state.Course.Get("node-a"))

	stored := store.stored(models.KindModule, "m1")
	assert.Equal(t, uint64(2), stored.Course.Get("node-a"))

	_, err = m.Advance(ctx, models.KindModule, "m1", models.System("canvas"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManager_Advance_NoLostUpdates(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store, "node-a")

	const workers = 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Advance(ctx, models.KindTopic, "hot", models.SystemForum)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := m.Get(ctx, models.KindTopic, "hot")
	require.NoError(t, err)
	assert.Equal(t, uint64(workers), state.Forum.Get("node-a"))
}

func TestManager_PersistFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store, "node-a")

	_, err := m.Advance(ctx, models.KindUser, "u1", models.SystemLocal)
	require.NoError(t, err)

	store.failUpsert = errors.New("disk full")
	_, err = m.Advance(ctx, models.KindUser, "u1", models.SystemLocal)
	require.Error(t, err)

	state, err := m.Get(ctx, models.KindUser, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.Local.Get("node-a"), "cache must not hold unpersisted state")
}

func TestManager_TwoReplicasConflictAndMerge(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	// Две реплики с собственными кэшами над общим хранилищем,
	// каждая меняет свою сторону, не видя изменения другой.
	replicaA := newTestManager(t, store, "node-a")
	replicaB := newTestManager(t, store, "node-b")

	_, err := replicaA.Advance(ctx, models.KindTopic, "42", models.SystemCourse)
	require.NoError(t, err)
	state, err := replicaB.Advance(ctx, models.KindTopic, "42", models.SystemForum)
	require.NoError(t, err)

	assert.Equal(t, vclock.Concurrent, state.Course.Compare(state.Forum))
	assert.Equal(t, models.StatusConflict, state.Status)

	conflict, err := replicaB.DetectConflicts(ctx, models.KindTopic, "42", nil, nil)
	require.NoError(t, err)
	assert.True(t, conflict)

	resolved, err := replicaB.Resolve(ctx, models.KindTopic, "42", string(StrategyMerge))
	require.NoError(t, err)

	want := vclock.VersionVector{"node-a": 1, "node-b": 1}
	assert.Equal(t, models.StatusSynced, resolved.Status)
	assert.True(t, resolved.Course.Equal(want))
	assert.True(t, resolved.Forum.Equal(want))
	assert.True(t, resolved.Local.Equal(want))

	needs, err := replicaB.NeedsSync(ctx, models.KindTopic, "42")
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestManager_ResolveStrategies(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		strategy Strategy
		want     vclock.VersionVector
	}{
		{StrategyPreferCourse, vclock.VersionVector{"node-a": 2, "node-b": 1}},
		{StrategyPreferForum, vclock.VersionVector{"node-a": 1, "node-b": 3}},
		{StrategyMerge, vclock.VersionVector{"node-a": 2, "node-b": 3}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			store := newMemStore()
			m := newTestManager(t, store, "node-a")
			conflictState(store, models.KindPost, "1")

			resolved, err := m.Resolve(ctx, models.KindPost, "1", string(tt.strategy))
			require.NoError(t, err)

			assert.Equal(t, models.StatusSynced, resolved.Status)
			assert.Equal(t, vclock.Identical, resolved.Course.Compare(resolved.Forum))
			assert.True(t, resolved.Course.Equal(tt.want))
			assert.True(t, resolved.Local.Equal(tt.want))

			stored := store.stored(models.KindPost, "1")
			assert.Equal(t, models.StatusSynced, stored.Status)
			assert.True(t, stored.Forum.Equal(tt.want))
		})
	}
}

func TestManager_ResolvePreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		store := newMemStore()
		m := newTestManager(t, store, "node-a")

		_, err := m.Resolve(ctx, models.KindPost, "missing", "merge")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, store.stored(models.KindPost, "missing"))
	})

	t.Run("not in conflict", func(t *testing.T) {
		store := newMemStore()
		m := newTestManager(t, store, "node-a")
		_, err := m.Advance(ctx, models.KindPost, "1", models.SystemCourse)
		require.NoError(t, err)
		before := store.stored(models.KindPost, "1")

		_, err = m.Resolve(ctx, models.KindPost, "1", "merge")
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, before, store.stored(models.KindPost, "1"))
	})

	t.Run("unknown strategy", func(t *testing.T) {
		store := newMemStore()
		m := newTestManager(t, store, "node-a")
		conflictState(store, models.KindPost, "1")
		before := store.stored(models.KindPost, "1")

		_, err := m.Resolve(ctx, models.KindPost, "1", "prefer_newest")
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Equal(t, before, store.stored(models.KindPost, "1"))

		cached, err := m.Get(ctx, models.KindPost, "1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusConflict, cached.Status)
	})

	t.Run("resolve is not idempotent", func(t *testing.T) {
		store := newMemStore()
		m := newTestManager(t, store, "node-a")
		conflictState(store, models.KindPost, "1")

		_, err := m.Resolve(ctx, models.KindPost, "1", "merge")
		require.NoError(t, err)
		_, err = m.Resolve(ctx, models.KindPost, "1", "merge")
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestManager_TouchAndMarkError(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store, "node-a")

	require.NoError(t, m.Touch(ctx, models.KindAssignment, "a1"))
	state, err := m.Get(ctx, models.KindAssignment, "a1")
	require.NoError(t, err)
	assert.Equal(t, m.now(), state.LastSync)

	require.NoError(t, m.MarkError(ctx, models.KindAssignment, "a1"))
	state, err = m.Get(ctx, models.KindAssignment, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, state.Status)

	// новая мутация пересчитывает статус
	state, err = m.Advance(ctx, models.KindAssignment, "a1", models.SystemLocal)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingSync, state.Status)
}

func TestManager_GetNotFound(t *testing.T) {
	m := newTestManager(t, newMemStore(), "node-a")
	_, err := m.Get(context.Background(), models.KindUser, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_List(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store, "node-a")
	conflictState(store, models.KindTopic, "1")
	_, err := m.Advance(ctx, models.KindTopic, "2", models.SystemLocal)
	require.NoError(t, err)

	conflicts, err := m.List(ctx, models.StateFilter{Status: models.StatusConflict})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "1", conflicts[0].EntityID)
}
