package models

import (
	"errors"
	"fmt"
)

// ErrUnknownValue возвращается при разборе строки, не входящей в закрытое перечисление.
var ErrUnknownValue = errors.New("unknown value")

// EntityKind тип синхронизируемой сущности
type EntityKind string

const (
	KindUser       EntityKind = "user"
	KindCourse     EntityKind = "course"
	KindModule     EntityKind = "module"
	KindTopic      EntityKind = "topic"
	KindPost       EntityKind = "post"
	KindAssignment EntityKind = "assignment"
)

// AllKinds возвращает все типы сущностей в порядке полной синхронизации:
// пользователи и курсы раньше зависящих от них модулей, тем и сообщений.
func AllKinds() []EntityKind {
	return []EntityKind{KindUser, KindCourse, KindModule, KindTopic, KindPost, KindAssignment}
}

// ParseEntityKind разбирает тип сущности; неизвестные значения отклоняются.
func ParseEntityKind(s string) (EntityKind, error) {
	switch k := EntityKind(s); k {
	case KindUser, KindCourse, KindModule, KindTopic, KindPost, KindAssignment:
		return k, nil
	default:
		return "", fmt.Errorf("%w: entity kind %q", ErrUnknownValue, s)
	}
}

// Valid сообщает, входит ли значение в перечисление.
func (k EntityKind) Valid() bool {
	_, err := ParseEntityKind(string(k))
	return err == nil
}

func (k EntityKind) String() string {
	return string(k)
}

// StateKey формирует ключ кэша состояния сущности: "{kind}:{id}".
func StateKey(kind EntityKind, entityID string) string {
	return string(kind) + ":" + entityID
}

// System система, в которой может измениться сущность.
// Каждой системе соответствует отдельный вектор версий в состоянии сущности.
type System string

const (
	// SystemLocal локальное хранилище (система учета)
	SystemLocal System = "local"
	// SystemCourse платформа курсов (LMS)
	SystemCourse System = "course"
	// SystemForum платформа обсуждений (форум)
	SystemForum System = "forum"
)

// ParseSystem разбирает название системы.
func ParseSystem(s string) (System, error) {
	switch sys := System(s); sys {
	case SystemLocal, SystemCourse, SystemForum:
		return sys, nil
	default:
		return "", fmt.Errorf("%w: system %q", ErrUnknownValue, s)
	}
}

// Valid сообщает, входит ли значение в перечисление.
func (s System) Valid() bool {
	_, err := ParseSystem(string(s))
	return err == nil
}

func (s System) String() string {
	return string(s)
}
