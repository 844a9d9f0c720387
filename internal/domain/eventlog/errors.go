package eventlog

import "errors"

var (
	// ErrUnknownStream indicates a stream name outside the known set.
	ErrUnknownStream = errors.New("unknown stream")

	// ErrDuplicateDecision indicates a second decision entry for one item.
	ErrDuplicateDecision = errors.New("decision already recorded for item")
)
