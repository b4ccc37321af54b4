package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged server-side with the request ID and returned to the
// client as a JSON body carrying a user-friendly message, a suggested action
// and a support code.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/dataimport/internal/core"
	"github.com/JonMunkholm/dataimport/internal/definition"
	"github.com/JonMunkholm/dataimport/internal/jobs"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// UserMessage is the client-facing description of an error.
type UserMessage struct {
	Message string
	Action  string
	Code    string
	Status  int
}

// errorKinds maps sentinel errors to user messages. The first match wins.
var errorKinds = []struct {
	target error
	msg    UserMessage
}{
	{jobs.ErrUnknownDefinition, UserMessage{"Import definition not found", "Check the definition key", "DEF001", http.StatusNotFound}},
	{definition.ErrInvalid, UserMessage{"Import definition is invalid", "Fix the definition file and reload", "DEF002", http.StatusUnprocessableEntity}},
	{jobs.ErrRunNotFound, UserMessage{"Import run not found", "The run may have expired; start a new one", "RUN001", http.StatusNotFound}},
	{jobs.ErrTooManyRuns, UserMessage{"Too many imports are running", "Please wait a moment before trying again", "RUN002", http.StatusServiceUnavailable}},
	{core.ErrSourceUnavailable, UserMessage{"The import source could not be read", "Check the source path or query", "SRC001", http.StatusBadGateway}},
	{context.DeadlineExceeded, UserMessage{"Operation timed out", "Please try again later", "RUN003", http.StatusGatewayTimeout}},
}

// errorPatterns catch driver errors that carry no sentinel.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004", http.StatusServiceUnavailable}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005", http.StatusServiceUnavailable}},
}

var unknownError = UserMessage{"An unexpected error occurred", "Please try again or contact support", "ERR000", http.StatusInternalServerError}

// MapError converts err to a user message.
func MapError(err error) UserMessage {
	if err == nil {
		return unknownError
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}
	lower := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(lower, p.pattern) {
			return p.msg
		}
	}
	return unknownError
}

// respondError logs the technical error and writes the mapped JSON error.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", msg.Status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeErrorJSON(w, msg)
}

// writeBadRequest rejects a malformed request.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeErrorJSON(w, UserMessage{Message: message, Code: "REQ001", Status: http.StatusBadRequest})
}

func writeErrorJSON(w http.ResponseWriter, msg UserMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(msg.Status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
