package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a compare-and-swap finds the row already moved
	ErrConflict = errors.New("conflict: entity was modified concurrently")

	// ErrForeignKeyViolation is returned when a foreign key constraint fails
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable wraps failures of the item and vote store
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStreamUnavailable wraps failures of the stream log
	ErrStreamUnavailable = errors.New("stream unavailable")
)
