package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrInvalidState is returned for transitions a record's lifecycle does not allow.
	ErrInvalidState = errors.New("invalid state transition")

	// Account state errors
	ErrAccountSuspended = errors.New("account is suspended")
	ErrAccountBanned    = errors.New("account is banned")
)

// Machine-readable policy codes
const (
	CodeNoValidMahram    = "NO_VALID_MAHRAM"
	CodeContentBlocked   = "CONTENT_BLOCKED"
	CodeNotParticipant   = "NOT_PARTICIPANT"
	CodeAccountSuspended = "ACCOUNT_SUSPENDED"
	CodeAccountBanned    = "ACCOUNT_BANNED"
)

// PolicyError is a Forbidden decision carrying a structured reason so clients
// can render targeted guidance.
type PolicyError struct {
	Code              string
	Message           string
	BlockedContent    []string
	MessagesRemaining int
}

func (e *PolicyError) Error() string {
	if len(e.BlockedContent) > 0 {
		return fmt.Sprintf("%s: %s %v", e.Code, e.Message, e.BlockedContent)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap makes every PolicyError match ErrForbidden.
func (e *PolicyError) Unwrap() error {
	return ErrForbidden
}

// NewNoValidMahramError is returned when a female member has no active guardian.
func NewNoValidMahramError() *PolicyError {
	return &PolicyError{
		Code:    CodeNoValidMahram,
		Message: "an approved guardian with an active service is required before messaging",
	}
}

// NewContentBlockedError is returned when screening rejects a message.
func NewContentBlockedError(categories []string, remaining int) *PolicyError {
	return &PolicyError{
		Code:              CodeContentBlocked,
		Message:           "sharing contact details is not allowed in the first messages of a conversation",
		BlockedContent:    categories,
		MessagesRemaining: remaining,
	}
}

// NewNotParticipantError is returned when the caller is not part of a conversation.
func NewNotParticipantError() *PolicyError {
	return &PolicyError{
		Code:    CodeNotParticipant,
		Message: "not a participant of this conversation",
	}
}

// AsPolicyError extracts a PolicyError from err.
func AsPolicyError(err error) (*PolicyError, bool) {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ValidationError is a Validation failure with a message safe to return to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
