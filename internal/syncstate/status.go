package syncstate

import (
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/vclock"
)

// DetermineStatus выводит статус синхронизации из векторов курса, форума и локальной системы.
// Чистая функция: одинаковые входы всегда дают одинаковый статус.
func DetermineStatus(course, forum, local vclock.VersionVector) models.SyncStatus {
	if course.Compare(forum) == vclock.Concurrent {
		return models.StatusConflict
	}

	courseLocal := course.Compare(local)
	forumLocal := forum.Compare(local)

	switch {
	case courseLocal == vclock.Identical && forumLocal == vclock.Identical:
		return models.StatusSynced
	case courseLocal == vclock.Concurrent || forumLocal == vclock.Concurrent:
		return models.StatusConflict
	default:
		return models.StatusPendingSync
	}
}
