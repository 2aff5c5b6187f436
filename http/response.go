package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sagarc03/blobkeep"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusResponse is the body of the health and readiness checks.
type StatusResponse struct {
	Status string `json:"status"`
}

// ServiceInfo is the body of GET /.
type ServiceInfo struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes appropriate error response based on error type
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger(r)

	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, blobkeep.ErrInvalidKey):
		log.Debug("rejected key", "error", err)
		WriteError(w, http.StatusBadRequest, "invalid_key", "Invalid key")
	case errors.Is(err, blobkeep.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "Blob not found")
	case errors.As(err, &maxBytesErr):
		log.Info("upload too large", "limit", maxBytesErr.Limit)
		WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Upload exceeds the maximum size")
	case errors.Is(err, blobkeep.ErrContentRead):
		log.Info("upload aborted", "error", err)
		WriteError(w, http.StatusBadRequest, "invalid_body", "Request body could not be read")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Info("request cancelled", "error", err)
		WriteError(w, http.StatusServiceUnavailable, "request_cancelled", "Request cancelled")
	case errors.Is(err, blobkeep.ErrStorageUnavailable):
		log.Error("storage error", "error", err)
		WriteError(w, http.StatusInternalServerError, "storage_unavailable", "Storage unavailable")
	case errors.Is(err, blobkeep.ErrInternal):
		log.Error("internal error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	default:
		log.Error("request error", "error", fmt.Errorf("%w: %w", blobkeep.ErrInternal, err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

// logger returns the default logger tagged with the request id.
func logger(r *http.Request) *slog.Logger {
	if r == nil {
		return slog.Default()
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		return slog.Default().With("request_id", id)
	}
	return slog.Default()
}
