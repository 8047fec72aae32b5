package http

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the error body returned by every endpoint
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error kind
	Message string `json:"message"` // Human-readable message

	// Set only for policy denials
	Code              string   `json:"code,omitempty"`
	BlockedContent    []string `json:"blockedContent,omitempty"`
	MessagesRemaining int      `json:"messagesRemaining,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// WritePolicyDenied writes a 403 carrying a policy code so clients can render
// targeted guidance
func WritePolicyDenied(w http.ResponseWriter, code, message string, blockedContent []string, messagesRemaining int) {
	WriteJSON(w, http.StatusForbidden, ErrorResponse{
		Error:             "forbidden",
		Message:           message,
		Code:              code,
		BlockedContent:    blockedContent,
		MessagesRemaining: messagesRemaining,
	})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
