package storage

import "errors"

// ErrSessionNotFound indicates that the operator has not logged in
var ErrSessionNotFound = errors.New("session not found")
