package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpggio/semantix/internal/artifact"
	"github.com/rpggio/semantix/internal/domain/approval"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/rpggio/semantix/internal/domain/vote"
	"github.com/rpggio/semantix/internal/repository"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// StatusFor maps a service error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, item.ErrItemNotFound),
		errors.Is(err, artifact.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, item.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, item.ErrInvalidTransition),
		errors.Is(err, training.ErrRunInProgress),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, item.ErrInvalidInput),
		errors.Is(err, vote.ErrInvalidInput),
		errors.Is(err, vote.ErrInvalidLabel),
		errors.Is(err, approval.ErrInvalidAction),
		errors.Is(err, training.ErrInvalidConfig),
		errors.Is(err, artifact.ErrInvalidVersion),
		errors.Is(err, eventlog.ErrUnknownStream),
		errors.Is(err, repository.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrStoreUnavailable),
		errors.Is(err, repository.ErrStreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorBody{Error: message})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		requestID, _ := RequestIDFromContext(r.Context())
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", requestID, "error", err)
	}
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
