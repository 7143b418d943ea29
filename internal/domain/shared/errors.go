// Package shared contains domain error types used across all domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyValue   = errors.New("value cannot be empty")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrInvalidFormat      = errors.New("invalid format")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "receipt", "student"
	Op      string // Operation that failed, e.g., "Validate", "Export"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student service errors
var (
	ErrStudentNotFound          = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentServiceDown       = NewDomainError("student", "Request", ErrServiceUnavailable, "student service is unavailable")
	ErrStudentServiceTimeout    = NewDomainError("student", "Request", ErrTimeout, "student service request timeout")
	ErrStudentServiceBadPayload = NewDomainError("student", "Parse", ErrInvalidFormat, "invalid response from student service")
)

// Receipt errors
var (
	ErrUnknownField       = NewDomainError("receipt", "UpdateField", ErrInvalidInput, "unknown receipt field")
	ErrRequiredFields     = NewDomainError("receipt", "Validate", ErrValidation, "student name and email are required")
	ErrAssetUnavailable   = NewDomainError("receipt", "Export", ErrExternalService, "signature asset unavailable")
	ErrExportInProgress   = NewDomainError("receipt", "Export", ErrInvalidState, "an export is already in progress")
	ErrSessionNotFound    = NewDomainError("session", "Find", ErrNotFound, "session not found")
	ErrSessionExpired     = NewDomainError("session", "Find", ErrExpired, "session expired")
	ErrTooManySessions    = NewDomainError("session", "Open", ErrServiceUnavailable, "too many open sessions")
	ErrInvalidCredentials = NewDomainError("operator", "Authenticate", ErrUnauthorized, "invalid API key")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrInvalidFormat)
}
