package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordokr/LMS-sub004/internal/models"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	storage, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

// testTime фиксированный момент для детерминированных тестов
var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestQueueItem(kind models.EntityKind, entityID string, createdAt time.Time) *models.QueueItem {
	return &models.QueueItem{
		ID:          uuid.New().String(),
		Kind:        kind,
		EntityID:    entityID,
		Direction:   models.DirectionCourseToForum,
		Status:      models.QueuePending,
		MaxAttempts: 3,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestNew_RunsMigrations(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	tables := []string{"entity_version_vectors", "sync_transactions", "sync_queue", "entity_mappings"}
	for _, table := range tables {
		var name string
		err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}

	assert.NoError(t, s.Ping(context.Background()))
}

func TestTimeLayout_SortsLexicographically(t *testing.T) {
	early := formatTime(testTime)
	late := formatTime(testTime.Add(time.Nanosecond))
	assert.Less(t, early, late)
	assert.Len(t, late, len(early))

	parsed, err := parseTime(early)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(testTime))
}
