package vote

import "errors"

var (
	// ErrInvalidLabel indicates a label outside the accepted alphabet.
	ErrInvalidLabel = errors.New("invalid vote label")

	// ErrInvalidInput indicates invalid vote input.
	ErrInvalidInput = errors.New("invalid vote input")

	// ErrInvalidPolicy indicates an unusable threshold policy.
	ErrInvalidPolicy = errors.New("invalid vote policy")
)
