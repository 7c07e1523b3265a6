package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches any *Error of KindValidation
	ErrValidation = errors.New("validation failed")

	// ErrNotFound matches any *Error of KindNotFound
	ErrNotFound = errors.New("not found")

	// ErrInvalidOperation matches any *Error of KindInvalidOperation
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrConcurrentUpdate is returned by stores when an instance no longer
	// has the state the caller read before transitioning it
	ErrConcurrentUpdate = errors.New("instance was modified concurrently")
)

// Kind is the closed set of error categories the engine raises.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInvalidOperation
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidOperation:
		return "invalid_operation"
	default:
		return "internal"
	}
}

// Error is a categorized engine error.
type Error struct {
	Kind       Kind
	Message    string
	Violations []string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel for the error's kind so errors.Is works.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindInvalidOperation:
		return ErrInvalidOperation
	default:
		return nil
	}
}

// NewValidationError aggregates every violation into a single error
func NewValidationError(violations []string) *Error {
	return &Error{
		Kind:       KindValidation,
		Message:    "Validation failed: " + strings.Join(violations, "; "),
		Violations: violations,
	}
}

// NewNotFoundError creates a KindNotFound error
func NewNotFoundError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidOperationError creates a KindInvalidOperation error
func NewInvalidOperationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidOperation, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the category of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return KindInternal
}
