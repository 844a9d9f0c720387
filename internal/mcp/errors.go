package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/semantix/internal/domain/approval"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/rpggio/semantix/internal/domain/vote"
	"github.com/rpggio/semantix/internal/repository"
)

// APIError represents an MCP tool error.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unknown errors map to nil.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, item.ErrItemNotFound):
		return &APIError{Code: "ITEM_NOT_FOUND", Message: "item not found", RecoveryHint: "Ingest the item first or check the hash"}
	case errors.Is(err, item.ErrInvalidTransition):
		return &APIError{Code: "ALREADY_DECIDED", Message: "item is no longer in voting", RecoveryHint: "Read the item state"}
	case errors.Is(err, item.ErrPayloadTooLarge):
		return &APIError{Code: "PAYLOAD_TOO_LARGE", Message: err.Error()}
	case errors.Is(err, vote.ErrInvalidLabel):
		return &APIError{Code: "INVALID_LABEL", Message: err.Error(), RecoveryHint: "Labels match [a-z0-9_:-]{1,64}"}
	case errors.Is(err, item.ErrInvalidInput),
		errors.Is(err, vote.ErrInvalidInput),
		errors.Is(err, approval.ErrInvalidAction),
		errors.Is(err, training.ErrInvalidConfig),
		errors.Is(err, eventlog.ErrUnknownStream):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, training.ErrRunInProgress):
		return &APIError{Code: "RUN_IN_PROGRESS", Message: "training run already in progress", RecoveryHint: "Retry after it finishes"}
	case errors.Is(err, repository.ErrStoreUnavailable), errors.Is(err, repository.ErrStreamUnavailable):
		return &APIError{Code: "UNAVAILABLE", Message: "storage unavailable", RecoveryHint: "Retry later"}
	default:
		return nil
	}
}

// toolError converts err for return from a tool handler.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
