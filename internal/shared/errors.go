package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Domain errors wrap exactly one of these so the transport layer
// can classify them with errors.Is.
var (
	// ErrValidation marks malformed input or a violated business precondition.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrStateConflict marks an operation that is illegal in the entity's current state.
	ErrStateConflict = errors.New("state conflict")
	// ErrPersistence marks an underlying storage failure.
	ErrPersistence = errors.New("persistence failure")
	// ErrForbidden indicates the actor lacks a capability.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing or invalid session.
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = Kind(ErrUnauthorized, "invalid username or password")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = Kind(ErrForbidden, "csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = Kind(ErrForbidden, "csrf token mismatch")
)

// DomainError carries a user-facing message and the kind it belongs to.
type DomainError struct {
	kind error
	msg  string
}

// Kind builds a DomainError of the given kind.
func Kind(kind error, msg string) *DomainError {
	return &DomainError{kind: kind, msg: msg}
}

func (e *DomainError) Error() string { return e.msg }

// Unwrap exposes the kind to errors.Is.
func (e *DomainError) Unwrap() error { return e.kind }

// Persistence wraps a storage error so it classifies as ErrPersistence while
// keeping the driver error in the chain.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// Message returns the text safe to show to a client. Persistence and unknown
// errors collapse to a generic message.
func Message(err error) string {
	var de *DomainError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPersistence):
		return "A storage error occurred. Please try again."
	case errors.As(err, &de):
		return err.Error()
	default:
		return "An unexpected error occurred."
	}
}
