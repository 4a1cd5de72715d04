// Package reconciliation records enrollment updates that did not propagate
// after the authoritative progress write succeeded, so that a background
// pass can repair them.
package reconciliation

import (
	"context"
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

// Failure is one pending propagation to the enrollment store.
type Failure struct {
	ID            string
	StudentEmail  shared.Email
	CourseID      shared.CourseID
	ModuleID      shared.ModuleID
	Reason        string
	Attempts      int
	CreatedAt     time.Time
	LastAttemptAt *time.Time
	ResolvedAt    *time.Time
}

// NewFailure builds a pending failure from the error that caused it.
func NewFailure(id string, email shared.Email, courseID shared.CourseID, moduleID shared.ModuleID, cause error) *Failure {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return &Failure{
		ID:           id,
		StudentEmail: email,
		CourseID:     courseID,
		ModuleID:     moduleID,
		Reason:       reason,
		CreatedAt:    time.Now().UTC(),
	}
}

// Ledger persists failures. Implementations live next to the student store,
// which has just accepted the authoritative write.
type Ledger interface {
	Record(ctx context.Context, f *Failure) error

	// ListPending returns unresolved failures with fewer than maxAttempts
	// attempts, oldest first. maxAttempts <= 0 disables the cap.
	ListPending(ctx context.Context, limit, maxAttempts int) ([]*Failure, error)

	// CountExhausted counts unresolved failures that reached maxAttempts.
	CountExhausted(ctx context.Context, maxAttempts int) (int, error)

	MarkResolved(ctx context.Context, id string, at time.Time) error

	// MarkAttempt increments Attempts and stores the latest reason.
	MarkAttempt(ctx context.Context, id string, reason string, at time.Time) error
}
