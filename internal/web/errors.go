package web

// errors.go provides the JSON error responses of the import API.
//
// Every error body has the shape {"error": ..., "details": ..., "code": ...}.
// The technical error is logged with the request ID; clients get the
// message from core.MapError plus optional details.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/jsonimport/internal/core"
	"github.com/JonMunkholm/jsonimport/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownCollection):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message.
// details is sent as-is when non-nil.
func respondError(w http.ResponseWriter, r *http.Request, err error, details any) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, r, status, ErrorResponse{Error: msg.Message, Details: details, Code: msg.Code})
}

// writeError writes an error body for failures detected in the web layer.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string, details any, code string) {
	logging.FromContext(r.Context()).Warn("request rejected",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", message,
	)
	writeJSON(w, r, status, ErrorResponse{Error: message, Details: details, Code: code})
}

// writeJSON encodes v as the response body.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
