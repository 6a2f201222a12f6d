package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/storage"
)

func TestQueueStorage_EnqueueAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	item := newTestQueueItem(models.KindTopic, "42", testTime)
	require.NoError(t, s.EnqueueItem(ctx, item))

	got, err := s.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, got.Status)
	assert.Equal(t, models.DirectionCourseToForum, got.Direction)
	assert.Equal(t, 0, got.Attempts)
	assert.Equal(t, 3, got.MaxAttempts)

	_, err = s.GetQueueItem(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrQueueItemNotFound)
}

func TestQueueStorage_ClaimPending(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	var ids []string
	for i := range 3 {
		item := newTestQueueItem(models.KindPost, "p", testTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.EnqueueItem(ctx, item))
		ids = append(ids, item.ID)
	}

	now := testTime.Add(time.Hour)
	claimed, err := s.ClaimPending(ctx, 2, now)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, ids[0], claimed[0].ID, "oldest first")
	assert.Equal(t, ids[1], claimed[1].ID)
	for _, item := range claimed {
		assert.Equal(t, models.QueueProcessing, item.Status)
		assert.Equal(t, 1, item.Attempts)
	}

	stored, err := s.GetQueueItem(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.QueueProcessing, stored.Status)
	assert.Equal(t, 1, stored.Attempts)

	// повторный claim берет только оставшийся pending
	claimed, err = s.ClaimPending(ctx, 10, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, ids[2], claimed[0].ID)

	claimed, err = s.ClaimPending(ctx, 10, now)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestQueueStorage_Transitions(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	item := newTestQueueItem(models.KindTopic, "42", testTime)
	require.NoError(t, s.EnqueueItem(ctx, item))

	// pending нельзя завершить
	err := s.CompleteItem(ctx, item.ID, 0, testTime)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	_, err = s.ClaimPending(ctx, 1, testTime)
	require.NoError(t, err)
	require.NoError(t, s.RetryItem(ctx, item.ID, 1, "timeout", testTime))

	got, err := s.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, got.Status)
	assert.Equal(t, "timeout", got.LastError)
	assert.Equal(t, 1, got.Attempts)

	_, err = s.ClaimPending(ctx, 1, testTime)
	require.NoError(t, err)
	require.NoError(t, s.FailItem(ctx, item.ID, 2, "gone", testTime))

	// failed можно только перевооружить
	err = s.RetryItem(ctx, item.ID, 2, "again", testTime)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	require.NoError(t, s.RearmItem(ctx, item.ID, testTime))
	got, err = s.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.Empty(t, got.LastError)

	err = s.RearmItem(ctx, item.ID, testTime)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	err = s.CompleteItem(ctx, "missing", 1, testTime)
	assert.ErrorIs(t, err, storage.ErrQueueItemNotFound)
}

func TestQueueStorage_SupersededClaim(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	item := newTestQueueItem(models.KindTopic, "42", testTime)
	require.NoError(t, s.EnqueueItem(ctx, item))

	first, err := s.ClaimPending(ctx, 1, testTime)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// sweep вернул зависший элемент, и его захватил второй проход
	requeued, _, err := s.RequeueStale(ctx, testTime.Add(time.Minute), testTime.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), requeued)
	second, err := s.ClaimPending(ctx, 1, testTime.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 2, second[0].Attempts)

	tests := []struct {
		name   string
		settle func() error
	}{
		{"complete", func() error { return s.CompleteItem(ctx, item.ID, first[0].Attempts, testTime) }},
		{"retry", func() error { return s.RetryItem(ctx, item.ID, first[0].Attempts, "late", testTime) }},
		{"fail", func() error { return s.FailItem(ctx, item.ID, first[0].Attempts, "late", testTime) }},
		{"release", func() error { return s.ReleaseItem(ctx, item.ID, first[0].Attempts, testTime) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.settle(), storage.ErrClaimSuperseded)

			got, err := s.GetQueueItem(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, models.QueueProcessing, got.Status)
			assert.Equal(t, 2, got.Attempts)
		})
	}

	require.NoError(t, s.CompleteItem(ctx, item.ID, second[0].Attempts, testTime.Add(time.Hour)))
}

func TestQueueStorage_ReleaseItem(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	item := newTestQueueItem(models.KindTopic, "42", testTime)
	require.NoError(t, s.EnqueueItem(ctx, item))

	claimed, err := s.ClaimPending(ctx, 1, testTime)
	require.NoError(t, err)
	require.NoError(t, s.ReleaseItem(ctx, item.ID, claimed[0].Attempts, testTime))

	got, err := s.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, got.Status)
	assert.Equal(t, 0, got.Attempts, "abandoned attempt is not counted")

	err = s.ReleaseItem(ctx, item.ID, 0, testTime)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
}

func TestQueueStorage_RequeueStale(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	retryable := newTestQueueItem(models.KindTopic, "1", testTime)
	exhausted := newTestQueueItem(models.KindTopic, "2", testTime)
	exhausted.MaxAttempts = 1
	fresh := newTestQueueItem(models.KindTopic, "3", testTime.Add(time.Minute))
	for _, item := range []*models.QueueItem{retryable, exhausted, fresh} {
		require.NoError(t, s.EnqueueItem(ctx, item))
	}

	_, err := s.ClaimPending(ctx, 2, testTime)
	require.NoError(t, err)
	_, err = s.ClaimPending(ctx, 1, testTime.Add(time.Hour))
	require.NoError(t, err)

	requeued, failed, err := s.RequeueStale(ctx, testTime.Add(30*time.Minute), testTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), requeued)
	assert.Equal(t, int64(1), failed)

	got, err := s.GetQueueItem(ctx, retryable.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, got.Status)
	assert.Equal(t, staleError, got.LastError)

	got, err = s.GetQueueItem(ctx, exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueFailed, got.Status)

	got, err = s.GetQueueItem(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueProcessing, got.Status, "recently claimed items are left alone")
}

func TestQueueStorage_DeleteCompletedBefore(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	done := newTestQueueItem(models.KindUser, "1", testTime)
	failed := newTestQueueItem(models.KindUser, "2", testTime)
	failed.MaxAttempts = 1
	require.NoError(t, s.EnqueueItem(ctx, done))
	require.NoError(t, s.EnqueueItem(ctx, failed))

	_, err := s.ClaimPending(ctx, 2, testTime)
	require.NoError(t, err)
	require.NoError(t, s.CompleteItem(ctx, done.ID, 1, testTime))
	require.NoError(t, s.FailItem(ctx, failed.ID, 1, "boom", testTime))

	deleted, err := s.DeleteCompletedBefore(ctx, testTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = s.GetQueueItem(ctx, done.ID)
	assert.ErrorIs(t, err, storage.ErrQueueItemNotFound)

	_, err = s.GetQueueItem(ctx, failed.ID)
	assert.NoError(t, err, "failed items are never cleaned up")
}

func TestQueueStorage_ListAndCount(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	for i := range 3 {
		item := newTestQueueItem(models.KindModule, "m", testTime.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.EnqueueItem(ctx, item))
	}
	_, err := s.ClaimPending(ctx, 1, testTime)
	require.NoError(t, err)

	pending, err := s.ListQueueItems(ctx, models.QueuePending, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	all, err := s.ListQueueItems(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	stats, err := s.CountQueueItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats[models.QueuePending])
	assert.Equal(t, 1, stats[models.QueueProcessing])
	assert.Equal(t, 0, stats[models.QueueFailed])
}
