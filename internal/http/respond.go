package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fjod/storefront/internal/lifecycle"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// decodeJSON reports false after writing the error response itself.
// An empty body is accepted when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
		return false
	}
	respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
	return false
}

// handleServiceError maps domain errors to HTTP status codes
func handleServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var httpStatus int
	var code, message string

	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		httpStatus, code, message = http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, lifecycle.ErrInvalidState):
		httpStatus, code, message = http.StatusBadRequest, "invalid_state", lifecycle.ErrInvalidState.Error()
	case errors.Is(err, repository.ErrCartNotFound),
		errors.Is(err, repository.ErrItemNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProductNotFound):
		httpStatus, code, message = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code, message = http.StatusGatewayTimeout, "timeout", "request timed out"
	default:
		log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		httpStatus, code, message = http.StatusInternalServerError, "internal_error", "internal server error"
	}

	respondError(w, httpStatus, code, message)
}
