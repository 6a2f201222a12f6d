// Package storage defines the local state kept by the operator CLI.
package storage

import (
	"context"
	"time"
)

// SessionStorage хранит сессию оператора между запусками CLI
type SessionStorage interface {
	// SaveSession сохраняет сессию, заменяя предыдущую
	SaveSession(ctx context.Context, s *Session) error

	// GetSession возвращает текущую сессию или ErrSessionNotFound
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession удаляет сессию (logout); ErrSessionNotFound если ее нет
	DeleteSession(ctx context.Context) error
}

// Session токен оператора и сервер, который его выдал
type Session struct {
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username"`
	ServerURL   string    `json:"server_url"`
	AccessToken string    `json:"access_token"`
}

// Expired сообщает, истек ли токен к моменту now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
