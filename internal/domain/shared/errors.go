// Package shared contains common domain types and errors that are used across
// all domain packages. This package has zero external dependencies.
package shared

import (
	"context"
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrAlreadyEnrolled is a uniqueness conflict on (studentEmail, courseId).
	ErrAlreadyEnrolled = fmt.Errorf("already enrolled: %w", ErrAlreadyExists)

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Store and upstream errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUpstreamFeed     = errors.New("upstream feed error")
	ErrExternalService  = errors.New("external service error")
	ErrTimeout          = errors.New("operation timeout")

)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "student_store", "enrollment_store", "jobfeed"
	Op      string // Operation that failed, e.g., "Create", "UpsertProgress"
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

// Is implements errors.Is() matching.
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

// Error domains. Each store fails independently of the others.
const (
	DomainStudentStore    = "student_store"
	DomainEnrollmentStore = "enrollment_store"
	DomainCache           = "cache"
	DomainJobFeed         = "jobfeed"
	DomainVerification    = "verification"
)

// Student store errors
var (
	ErrStudentNotFound      = NewDomainError(DomainStudentStore, "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError(DomainStudentStore, "Create", ErrAlreadyExists, "student already exists")
	ErrInvalidEmail         = NewDomainError(DomainStudentStore, "Validate", ErrInvalidInput, "invalid email")
	ErrInvalidQuizScore     = NewDomainError(DomainStudentStore, "Validate", ErrValueOutOfRange, "quiz score must be between 0 and 100")
)

// Enrollment store errors
var (
	ErrCourseNotFound     = NewDomainError(DomainEnrollmentStore, "FindCourse", ErrNotFound, "course not found")
	ErrTeacherNotFound    = NewDomainError(DomainEnrollmentStore, "FindTeacher", ErrNotFound, "teacher not found")
	ErrEnrollmentNotFound = NewDomainError(DomainEnrollmentStore, "FindEnrollment", ErrNotFound, "enrollment not found")
	ErrDuplicateEnroll    = NewDomainError(DomainEnrollmentStore, "Create", ErrAlreadyEnrolled, "student already enrolled in course")
)

// StoreUnavailable wraps a connectivity failure of the named store.
func StoreUnavailable(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrStoreUnavailable, "store unavailable", err)
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
// It also matches ErrAlreadyEnrolled.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsAlreadyEnrolled checks for the enrollment uniqueness conflict.
func IsAlreadyEnrolled(err error) bool {
	return errors.Is(err, ErrAlreadyEnrolled)
}

// IsStoreUnavailable checks if a store was unreachable.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTimeout)
}

// IsStoreOutage reports a store failure that should trip a circuit breaker.
// A caller that cancelled its own request is not an outage.
func IsStoreOutage(err error) bool {
	return IsStoreUnavailable(err) && !errors.Is(err, context.Canceled)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrExternalService)
}
