package syncstate

import "errors"

var (
	// ErrNotFound indicates that no state is tracked for the entity
	ErrNotFound = errors.New("entity state not found")

	// ErrInvalidState indicates that the entity is not in the status the operation requires
	ErrInvalidState = errors.New("invalid entity state")

	// ErrInvalidArgument indicates an unknown strategy, kind or system
	ErrInvalidArgument = errors.New("invalid argument")
)
