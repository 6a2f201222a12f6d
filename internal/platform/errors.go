package platform

import (
	"errors"
	"fmt"
)

// ErrNotFound удаленный объект не существует
var ErrNotFound = errors.New("remote object not found")

// TransportError сбой обращения к платформе (сеть, 4xx/5xx). Повторяемая ошибка.
type TransportError struct {
	Err        error
	Platform   string
	Op         string
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d: %v", e.Platform, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Platform, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport сообщает, является ли err (или любая обернутая ошибка) TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
