package models

import "time"

// EntityMapping связывает сущность с ее идентификаторами на внешних платформах
type EntityMapping struct {
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Kind           EntityKind `json:"entity_type"`
	EntityID       string     `json:"entity_id"`
	CourseRemoteID string     `json:"course_remote_id"`
	ForumRemoteID  string     `json:"forum_remote_id"`
}

// RemoteID возвращает идентификатор сущности на платформе system.
func (m *EntityMapping) RemoteID(system System) string {
	switch system {
	case SystemCourse:
		return m.CourseRemoteID
	case SystemForum:
		return m.ForumRemoteID
	default:
		return ""
	}
}
