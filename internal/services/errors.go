package services

import (
	"errors"
	"fmt"
)

// ===== SENTINEL ERRORS =====

var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAnswerNotFound   = errors.New("answer not found")
	ErrResultNotFound   = errors.New("result not found")

	// ErrSessionNotFound also covers sessions that were already finalized;
	// callers racing a finalize cannot tell the two apart and must not.
	ErrSessionNotFound = errors.New("session not found")

	ErrSessionNotActive  = errors.New("session is not active")
	ErrSessionNotPaused  = errors.New("session is not paused")
	ErrSessionNotMarked  = errors.New("session has not been marked")
	ErrSessionExpired    = errors.New("session time has expired")
	ErrExamWindowClosed  = errors.New("exam window has closed")
	ErrExamWindowNotOpen = errors.New("exam window has not opened")
	ErrMaxPausesReached  = errors.New("maximum pauses reached")
	ErrNothingToPublish  = errors.New("no marked submissions to publish")
)

// ===== STRUCTURED ERRORS =====

// PermissionError carries who tried what on which resource.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// ValidationError wraps field-level validation failures with a stable shape
// for the HTTP layer.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError marks state-machine violations that map to HTTP 409.
type ConflictError struct {
	Resource string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Resource, e.Reason)
}

func NewConflictError(resource, reason string) *ConflictError {
	return &ConflictError{Resource: resource, Reason: reason}
}

// ===== CLASSIFIERS =====

func IsNotFound(err error) bool {
	return errors.Is(err, ErrExamNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrAnswerNotFound) ||
		errors.Is(err, ErrResultNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, ErrSessionNotActive) ||
		errors.Is(err, ErrSessionNotPaused) ||
		errors.Is(err, ErrSessionNotMarked) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrExamWindowClosed) ||
		errors.Is(err, ErrExamWindowNotOpen) ||
		errors.Is(err, ErrMaxPausesReached)
}
