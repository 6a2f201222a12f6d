// Package platform contains adapters for the external course and forum platforms.
package platform

import (
	"context"
)

//go:generate moq -out adapter_mock.go . Adapter

// Adapter контракт внешней платформы. Движок вызывает только эти две операции;
// перевод идентификаторов и формата содержимого - забота адаптера.
type Adapter interface {
	// GetContent возвращает содержимое удаленного объекта
	// ErrNotFound если объекта нет, *TransportError при сбое сети или ответа
	GetContent(ctx context.Context, remoteID string) (string, error)

	// UpdateContent заменяет содержимое удаленного объекта
	UpdateContent(ctx context.Context, remoteID, content string) error
}
