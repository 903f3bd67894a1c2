package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/venuecache/internal/log"
)

// APIError is the JSON error body.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

var (
	ErrInvalidInput     = &APIError{Code: "INVALID_INPUT", Message: "Invalid input parameters"}
	ErrVenueNotFound    = &APIError{Code: "VENUE_NOT_FOUND", Message: "Venue not found"}
	ErrImageUnavailable = &APIError{Code: "IMAGE_UNAVAILABLE", Message: "Image could not be loaded"}
	ErrInternalServer   = &APIError{Code: "INTERNAL_SERVER_ERROR", Message: "An internal error occurred"}
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, apiErr *APIError, detail string) {
	body := APIError{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		RequestID: log.RequestIDFromContext(r.Context()),
	}
	if detail != "" {
		body.Message = detail
	}
	writeJSON(w, status, body)
}
