package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Error is mapped via service.MapError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is written as JSON with an HTTP status derived from
//     the error code

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shutterworks/photoflow/internal/service"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error server-side and writes the mapped
// user message as JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg := service.MapError(err)
	status := statusForCode(userMsg.Code)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", chimw.GetReqID(r.Context()),
	)

	writeJSON(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// badRequest writes a 400 with the given message, bypassing the error
// mapper. Used for malformed requests where the raw reason is the user
// message.
func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	slog.Warn("bad request",
		"path", r.URL.Path,
		"method", r.Method,
		"reason", message,
		"request_id", chimw.GetReqID(r.Context()),
	)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   message,
		Message: message,
		Code:    "REQ400",
	})
}

// statusForCode maps support codes to HTTP statuses. Unknown codes fall
// back to 500.
func statusForCode(code string) int {
	switch code {
	case "CSV001", "CSV002", "CSV003", "CSV004", "RST002", "JOB002", "JOB003":
		return http.StatusUnprocessableEntity
	case "JOB001", "RST001", "OP002":
		return http.StatusNotFound
	case "OP001":
		return http.StatusConflict
	case "OP003":
		return http.StatusConflict
	case "OP004":
		return http.StatusGatewayTimeout
	case "FS001":
		return http.StatusForbidden
	case "RATE001":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
