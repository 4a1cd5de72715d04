package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Identity Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Email is the identity of students and teachers across both stores.
type Email string

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NewEmail normalizes and validates an email address.
func NewEmail(raw string) (Email, error) {
	e := Email(strings.ToLower(strings.TrimSpace(raw)))
	if !e.IsValid() {
		return "", ErrInvalidEmail
	}
	return e, nil
}

// IsValid checks the address shape. It does not verify deliverability.
func (e Email) IsValid() bool {
	return len(e) <= 254 && emailRegex.MatchString(string(e))
}

// String returns the string representation.
func (e Email) String() string {
	return string(e)
}

// CourseID identifies a course in the enrollment store.
type CourseID string

// NewCourseID trims and validates a course id.
func NewCourseID(raw string) (CourseID, error) {
	id := CourseID(strings.TrimSpace(raw))
	if id == "" || len(id) > 64 {
		return "", NewDomainError(DomainEnrollmentStore, "Validate", ErrInvalidInput, "invalid course id")
	}
	return id, nil
}

// String returns the string representation.
func (c CourseID) String() string {
	return string(c)
}

// ModuleID identifies a module inside a course.
type ModuleID string

// NewModuleID trims and validates a module id.
func NewModuleID(raw string) (ModuleID, error) {
	id := ModuleID(strings.TrimSpace(raw))
	if id == "" || len(id) > 64 {
		return "", NewDomainError(DomainStudentStore, "Validate", ErrInvalidInput, "invalid module id")
	}
	return id, nil
}

// String returns the string representation.
func (m ModuleID) String() string {
	return string(m)
}
