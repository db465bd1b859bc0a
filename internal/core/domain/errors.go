package domain

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Kinds
// =============================================================================

var (
	// ErrInvalidArgument is returned for malformed ids, empty response text
	// and oversized descriptions.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidOperation is returned when a caller tries to create, update or
	// delete a predefined template.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrAlreadyExists is returned when a visible template already has the
	// same response.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned when a template does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("not found")
)

// ValidationError is a client input error. It unwraps to its Kind so callers
// can use errors.Is against the kinds above.
type ValidationError struct {
	Kind    error
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// NewInvalidArgument creates an InvalidArgument error for field.
func NewInvalidArgument(field, message string) *ValidationError {
	return &ValidationError{Kind: ErrInvalidArgument, Field: field, Message: message}
}

// NewInvalidOperation creates an InvalidOperation error.
func NewInvalidOperation(message string) *ValidationError {
	return &ValidationError{Kind: ErrInvalidOperation, Field: "type", Message: message}
}

// NewAlreadyExists reports that a resource with the given field values exists.
func NewAlreadyExists(resource, field string, values ...string) *ValidationError {
	return &ValidationError{
		Kind:    ErrAlreadyExists,
		Field:   field,
		Message: fmt.Sprintf("%s already exists with %s: [%s]", resource, field, strings.Join(values, ", ")),
	}
}

// NewNotFound reports that a resource with the given field values does not exist.
func NewNotFound(resource, field string, values ...string) *ValidationError {
	return &ValidationError{
		Kind:    ErrNotFound,
		Field:   field,
		Message: fmt.Sprintf("%s not found with %s: [%s]", resource, field, strings.Join(values, ", ")),
	}
}

// KindOf returns the error kind wrapped by err, or nil if err is not one of
// the domain kinds.
func KindOf(err error) error {
	for _, kind := range []error{ErrInvalidArgument, ErrInvalidOperation, ErrAlreadyExists, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
