package item

import "errors"

var (
	// ErrItemNotFound indicates the item doesn't exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrInvalidTransition indicates a status change out of a terminal state.
	ErrInvalidTransition = errors.New("invalid item status transition")

	// ErrInvalidInput indicates invalid ingest input.
	ErrInvalidInput = errors.New("invalid item input")

	// ErrPayloadTooLarge indicates the payload exceeds the configured limit.
	ErrPayloadTooLarge = errors.New("item payload too large")
)
