// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values that wrap one of the sentinel errors below.
// The HTTP layer never inspects messages; it asks errors.Is which sentinel is
// in the chain and picks the status code from that (see handler/response.go).
//
// WRAPPING A CAUSE:
// Persistence and verification failures carry the lower-level error in Cause.
// errors.Is / errors.As walk both branches, so callers can still match on
// gorm.ErrRecordNotFound or a jwt error after it has been classified here.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrPersistence  = errors.New("persistence error")
	ErrUnavailable  = errors.New("service unavailable")
)

type AppError struct {
	Err     error  // sentinel, one of the Err* values above
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error kept for diagnosis
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Detail returns the cause's message, or "" when there is none.
func (e *AppError) Detail() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NoneFound is a NotFound whose message is written by the caller, for lookups
// that are not keyed by a single id.
func NoneFound(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized reports a missing session or an unknown caller.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InvalidCredential reports a bearer token that was presented but rejected:
// malformed, expired, revoked, or signed by someone we do not trust.
func InvalidCredential(cause error) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "Invalid token",
		Cause:   cause,
	}
}

// Persistence wraps a storage failure. The cause is never dropped.
func Persistence(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrPersistence,
		Message: message,
		Cause:   cause,
	}
}

// Unavailable reports that a collaborator (the identity provider, usually)
// could not be reached or is not configured.
func Unavailable(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
		Cause:   cause,
	}
}
