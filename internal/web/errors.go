package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - Logged with full technical detail and the request ID (server-side)
//   - Mapped by core.MapError to a message, an action and a code
//   - Returned as JSON {"error", "message", "action", "code"}
//
// The HTTP status is derived from the code, so handlers only call
// respondError(w, r, err).

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/dataview/internal/core"
	"github.com/JonMunkholm/dataview/internal/logging"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusByCode maps error codes to HTTP statuses. Codes not listed are 500.
var statusByCode = map[string]int{
	"FILE001": http.StatusRequestEntityTooLarge,
	"FILE002": http.StatusBadRequest,
	"FILE003": http.StatusBadRequest,
	"FILE004": http.StatusBadRequest,
	"FILE005": http.StatusBadRequest,
	"VAL001":  http.StatusBadRequest,
	"VAL002":  http.StatusBadRequest,
	"VAL003":  http.StatusBadRequest,
	"DATA001": http.StatusNotFound,
	"DATA002": http.StatusBadRequest,
	"UPL001":  http.StatusServiceUnavailable,
	"UPL002":  http.StatusRequestTimeout,
	"UPL003":  http.StatusGatewayTimeout,
	"DB001":   http.StatusServiceUnavailable,
	"DB002":   http.StatusServiceUnavailable,
	"RATE001": http.StatusTooManyRequests,
}

// statusFor returns the HTTP status for err.
func statusFor(err error) int {
	if status, ok := statusByCode[core.MapError(err).Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err with the status its code maps to.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusFor(err), err)
}

// writeError logs the technical error and writes the user-facing response.
func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errorText(err, msg),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}); encErr != nil {
		logger.Error("json encode error", "error", encErr)
	}
}

// errorText is the short "error" field. Clients that only read this field
// get the same strings the API has always returned.
func errorText(err error, msg core.UserMessage) string {
	var convErr *core.ConversionError
	switch {
	case errors.Is(err, core.ErrNoData):
		return "No data available"
	case errors.Is(err, core.ErrBadRequest):
		return "Invalid JSON data."
	case errors.As(err, &convErr):
		return fmt.Sprintf("Failed to convert %s to %s: row %d value %q",
			convErr.Column, convErr.Type, convErr.Row+1, convErr.Value)
	case errors.Is(err, core.ErrUnknownColumn):
		return "Column not found" + strings.TrimPrefix(err.Error(), core.ErrUnknownColumn.Error())
	default:
		return msg.Message
	}
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
