package handlers

import (
	"net/http"

	"github.com/talisker77/media-viewer/internal/middleware"
)

// Machine-readable error kinds returned in the "error" field. The index
// and the disk can disagree between scans, so lookup failures carry
// which side was missing.
const (
	errNotFoundInIndex     = "not_found_in_index"
	errNotFoundOnDisk      = "not_found_on_disk"
	errForbidden           = "forbidden"
	errRangeNotSatisfiable = "range_not_satisfiable"
	errInvalidRequest      = "invalid_request"
	errInternal            = "internal_error"
)

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, errorResponse{
		Error:     kind,
		Message:   message,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}
