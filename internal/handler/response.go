package handler

// RESPONSE HELPERS:
// Every handler answers with writeJSON on success and writeError on failure,
// so clients always see the same error shape:
//
//	{"error": "not_found", "message": "snippet not found: snip-abc", "toasts": [...]}
//
// toasts carries the status messages the panel shows, when the operation
// produced any before it failed.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-box/internal/apperror"
)

// maxBodyBytes caps request bodies. Snippets are small text.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Field   string   `json:"field,omitempty"`
	Toasts  []string `json:"toasts,omitempty"`
}

// writeJSON sends data with the given status. Headers go out before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error to its HTTP status and machine-readable type.
//
//	ErrValidation        → 400 validation_error
//	ErrUnauthorized      → 401 unauthorized
//	ErrNotFound          → 404 not_found
//	ErrSourceUnavailable → 502 source_unavailable
//	ErrStoreRead/Write   → 503 store_unavailable
//	anything else        → 500 internal_error
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrSourceUnavailable):
		return http.StatusBadGateway, "source_unavailable"
	case errors.Is(err, apperror.ErrStoreRead), errors.Is(err, apperror.ErrStoreWrite):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError sends err in the standard format. Only *AppError messages reach
// the client; anything else is reported as a generic internal error.
func writeError(w http.ResponseWriter, err error, toasts ...string) {
	status, errorType := statusFor(err)
	resp := ErrorResponse{Error: errorType, Toasts: toasts}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	} else {
		status, resp.Error = http.StatusInternalServerError, "internal_error"
		resp.Message = "An internal error occurred"
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON body into dst, answering 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		logger.Warn("invalid request JSON",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return false
	}
	return true
}
