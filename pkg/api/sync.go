package api

import "time"

// ResolveRequest запрос на разрешение конфликта
type ResolveRequest struct {
	Strategy string `json:"strategy" validate:"required"`
}

// DetectRequest содержимое сущности на обеих платформах.
// Если Course и Forum не заданы, сервер читает содержимое с платформ сам.
type DetectRequest struct {
	Course *string `json:"course_data,omitempty"`
	Forum  *string `json:"forum_data,omitempty"`
}

// DetectResponse результат проверки конфликта
type DetectResponse struct {
	Kind     string `json:"entity_type"`
	EntityID string `json:"entity_id"`
	Status   string `json:"status"`
	Conflict bool   `json:"conflict"`
}

// EventRequest внешнее изменение сущности, наблюдавшееся в системе Source
type EventRequest struct {
	Source    string `json:"source" validate:"required,oneof=local course forum"`
	Operation string `json:"operation" validate:"omitempty,oneof=create update delete custom"`
}

// TransferRequest немедленный перенос содержимого одной сущности
type TransferRequest struct {
	Direction string `json:"direction" validate:"required,oneof=course_to_forum forum_to_course"`
}

// TransferResponse итог переноса
type TransferResponse struct {
	Kind      string `json:"entity_type"`
	EntityID  string `json:"entity_id"`
	Direction string `json:"direction"`
	Bytes     int    `json:"bytes"`
}

// MappingRequest идентификаторы сущности на внешних платформах
type MappingRequest struct {
	CourseRemoteID string `json:"course_remote_id" validate:"required_without=ForumRemoteID,max=512"`
	ForumRemoteID  string `json:"forum_remote_id" validate:"required_without=CourseRemoteID,max=512"`
}

// EnqueueRequest постановка операции в очередь повторов
type EnqueueRequest struct {
	Kind        string `json:"entity_type" validate:"required"`
	EntityID    string `json:"entity_id" validate:"required,entity_id"`
	Direction   string `json:"sync_direction" validate:"required,oneof=course_to_forum forum_to_course"`
	MaxAttempts int    `json:"max_attempts" validate:"gte=0,lte=100"`
}

// DrainResponse итог прохода по очереди
type DrainResponse struct {
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Released  int `json:"released"`
}

// KindSummary итог полной синхронизации по одному типу сущностей
type KindSummary struct {
	Kind      string `json:"entity_type"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Queued    int    `json:"queued"`
	Success   bool   `json:"success"`
}

// SyncSummary итог полной синхронизации
type SyncSummary struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Kinds      []KindSummary `json:"kinds"`
	Errors     []string      `json:"errors"`
	Skipped    bool          `json:"skipped"`
	Success    bool          `json:"success"`
}

// SyncStatus состояние полной синхронизации на сервере
type SyncStatus struct {
	LastStartedAt  time.Time      `json:"last_started_at"`
	LastFinishedAt time.Time      `json:"last_finished_at"`
	LastFullSync   time.Time      `json:"last_full_sync"`
	LastSummary    *SyncSummary   `json:"last_summary,omitempty"`
	Queue          map[string]int `json:"queue"`
	RecentErrors   []string       `json:"recent_errors"`
	Running        bool           `json:"running"`
}
