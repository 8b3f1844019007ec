package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error. Kinds are stable: handlers map
// them to HTTP statuses and clients may switch on them.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindAuthorization     Kind = "AUTHORIZATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindConflict          Kind = "CONFLICT"
	KindConfiguration     Kind = "CONFIGURATION"
	KindUnexpected        Kind = "UNEXPECTED"
)

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors on Kind so callers can use errors.Is with a bare
// constructor as the target.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// Error constructors
func NewValidation(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func NewValidationf(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewAuthorization(message string) *AppError {
	return &AppError{Kind: KindAuthorization, Message: message}
}

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

// NewInvalidTransition reports an illegal status change. The message
// exposes only the entity's current status, never internal state.
func NewInvalidTransition(entity, from, to string) *AppError {
	return &AppError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
	}
}

func NewConflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

func NewConfiguration(feature string) *AppError {
	return &AppError{
		Kind:    KindConfiguration,
		Message: fmt.Sprintf("%s is not configured", feature),
	}
}

func NewUnexpected(err error) *AppError {
	return &AppError{
		Kind:    KindUnexpected,
		Message: "internal server error",
		Err:     err,
	}
}

// KindOf returns the Kind of err if it is (or wraps) an AppError,
// KindUnexpected otherwise.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

// IsKind reports whether err is (or wraps) an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
