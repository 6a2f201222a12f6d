package models

import (
	"fmt"
	"time"
)

// Direction направление переноса содержимого между платформами
type Direction string

const (
	DirectionCourseToForum Direction = "course_to_forum"
	DirectionForumToCourse Direction = "forum_to_course"
)

// ParseDirection разбирает направление синхронизации.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionCourseToForum, DirectionForumToCourse:
		return d, nil
	default:
		return "", fmt.Errorf("%w: direction %q", ErrUnknownValue, s)
	}
}

// Source система-источник содержимого
func (d Direction) Source() System {
	if d == DirectionForumToCourse {
		return SystemForum
	}
	return SystemCourse
}

// Target система-получатель содержимого
func (d Direction) Target() System {
	if d == DirectionForumToCourse {
		return SystemCourse
	}
	return SystemForum
}

// QueueStatus состояние элемента очереди повторов
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// ParseQueueStatus разбирает сохраненный статус элемента очереди.
func ParseQueueStatus(s string) (QueueStatus, error) {
	switch st := QueueStatus(s); st {
	case QueuePending, QueueProcessing, QueueCompleted, QueueFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: queue status %q", ErrUnknownValue, s)
	}
}

// QueueItem отложенная операция синхронизации, переживающая перезапуск процесса
type QueueItem struct {
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	ID          string      `json:"id"`
	Kind        EntityKind  `json:"entity_type"`
	EntityID    string      `json:"entity_id"`
	Direction   Direction   `json:"sync_direction"`
	Status      QueueStatus `json:"status"`
	LastError   string      `json:"error_message,omitempty"`
	Attempts    int         `json:"attempt_count"`
	MaxAttempts int         `json:"max_attempts"`
}

// Exhausted сообщает, исчерпаны ли попытки.
func (q *QueueItem) Exhausted() bool {
	return q.Attempts >= q.MaxAttempts
}

// QueueStats количество элементов очереди по статусам
type QueueStats map[QueueStatus]int
