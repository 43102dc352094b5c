package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Generic error types

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates the caller exceeded its request budget
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrUnauthorized indicates missing or invalid credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates valid credentials without the required permission
	ErrForbidden = errors.New("forbidden")
)

// Encoding errors

var (
	// ErrMissingRequiredField indicates a required attribute was never supplied
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrUnmappedOrdinalValue indicates an ordinal value has no rank in its mapping
	ErrUnmappedOrdinalValue = errors.New("unmapped ordinal value")

	// ErrSchemaDrift indicates the encoder cannot produce the columns the model was trained on
	ErrSchemaDrift = errors.New("schema drift")

	// ErrInvalidValue indicates a value outside the field's enumeration or an unknown field
	ErrInvalidValue = errors.New("invalid attribute value")

	// ErrUnknownCategory indicates a garment category without a loaded schema
	ErrUnknownCategory = errors.New("unknown garment category")
)

// Model errors

var (
	// ErrModelNotLoaded indicates inference was attempted without a model session
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrUnknownLabel indicates the classifier returned a label outside the season mapping
	ErrUnknownLabel = errors.New("unknown class label")
)

// FieldError ties an encoding error kind to the attribute that caused it
type FieldError struct {
	Kind  error
	Field string
	Value string
}

// Error implements the error interface
func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%v: field '%s'", e.Kind, e.Field)
	}
	return fmt.Sprintf("%v: field '%s' (value: %q)", e.Kind, e.Field, e.Value)
}

// Unwrap returns the error kind so errors.Is matches the sentinel
func (e *FieldError) Unwrap() error {
	return e.Kind
}

// NewFieldError creates a new field error
func NewFieldError(kind error, field, value string) *FieldError {
	return &FieldError{Kind: kind, Field: field, Value: value}
}

// DriftError lists the columns and values that break schema alignment
type DriftError struct {
	Category            string
	UnproducibleColumns []string
	UnencodedValues     []string
}

// Error implements the error interface
func (e *DriftError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.UnproducibleColumns) > 0 {
		parts = append(parts, "unproducible columns ["+strings.Join(e.UnproducibleColumns, ", ")+"]")
	}
	if len(e.UnencodedValues) > 0 {
		parts = append(parts, "unencoded values ["+strings.Join(e.UnencodedValues, ", ")+"]")
	}
	return fmt.Sprintf("%v: %s: %s", ErrSchemaDrift, e.Category, strings.Join(parts, "; "))
}

// Unwrap returns ErrSchemaDrift
func (e *DriftError) Unwrap() error {
	return ErrSchemaDrift
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap lets validation errors match ErrInvalidInput
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Unwrap exposes every wrapped error to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// FieldErrors collects every FieldError in err's tree, including those inside a MultiError
func FieldErrors(err error) []*FieldError {
	var out []*FieldError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if fe, ok := e.(*FieldError); ok {
			out = append(out, fe)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}
