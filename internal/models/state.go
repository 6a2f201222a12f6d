package models

import (
	"time"

	"github.com/ordokr/LMS-sub004/internal/vclock"
)

// EntityVersionState причинная история сущности во всех системах.
// Состояние создается при первой мутации или проверке конфликта и никогда не удаляется.
type EntityVersionState struct {
	LastSync time.Time            `json:"last_sync"`
	Local    vclock.VersionVector `json:"local_vector"`
	Course   vclock.VersionVector `json:"course_vector"`
	Forum    vclock.VersionVector `json:"forum_vector"`
	Kind     EntityKind           `json:"entity_type"`
	EntityID string               `json:"entity_id"`
	Status   SyncStatus           `json:"status"`
}

// NewEntityVersionState создает состояние с пустыми векторами и статусом PendingSync.
func NewEntityVersionState(kind EntityKind, entityID string, now time.Time) *EntityVersionState {
	return &EntityVersionState{
		Kind:     kind,
		EntityID: entityID,
		Local:    vclock.New(),
		Course:   vclock.New(),
		Forum:    vclock.New(),
		Status:   StatusPendingSync,
		LastSync: now,
	}
}

// Key возвращает ключ состояния "{kind}:{id}".
func (s *EntityVersionState) Key() string {
	return StateKey(s.Kind, s.EntityID)
}

// Vector возвращает указатель на вектор указанной системы (nil для неизвестной системы).
func (s *EntityVersionState) Vector(system System) *vclock.VersionVector {
	switch system {
	case SystemLocal:
		return &s.Local
	case SystemCourse:
		return &s.Course
	case SystemForum:
		return &s.Forum
	default:
		return nil
	}
}

// Clone создает глубокую копию состояния
func (s *EntityVersionState) Clone() *EntityVersionState {
	c := *s
	c.Local = s.Local.Clone()
	c.Course = s.Course.Clone()
	c.Forum = s.Forum.Clone()
	return &c
}

// StateFilter параметры выборки состояний
type StateFilter struct {
	Kind   EntityKind // пусто - все типы
	Status SyncStatus // пусто - все статусы
	Limit  int        // 0 - без ограничения
}
