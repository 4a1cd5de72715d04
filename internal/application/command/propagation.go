// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
)

// WarningReconciliationFailure is returned when the authoritative progress
// write succeeded but the enrollment could not be updated.
const WarningReconciliationFailure = "reconciliation_failure"

// postWriteTimeout bounds follow-up work that must run once the
// authoritative write has committed: ledger records and cache invalidation.
const postWriteTimeout = 2 * time.Second

// detached returns a context that survives cancellation of ctx. Values such
// as the request logger are kept.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), postWriteTimeout)
}

// invalidate drops the cached dashboard after a committed write.
func invalidate(ctx context.Context, inv CacheInvalidator, email string) error {
	ctx, cancel := detached(ctx)
	defer cancel()
	return inv.Invalidate(ctx, email)
}

// CacheInvalidator drops the derived dashboard state of a student.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, email string) error
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, string) error { return nil }

// propagator recomputes an enrollment's progress from the student store.
type propagator struct {
	students    student.Repository
	enrollments enrollment.Repository
}

// propagate applies the student's current course progress to the enrollment.
// skipped is true when the student is not enrolled in the course.
func (p propagator) propagate(ctx context.Context, email shared.Email, courseID shared.CourseID) (change *enrollment.ProgressChange, skipped bool, err error) {
	e, err := p.enrollments.GetEnrollment(ctx, email, courseID)
	if err != nil {
		if errors.Is(err, shared.ErrEnrollmentNotFound) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("load enrollment: %w", err)
	}

	course := e.Course
	if course == nil {
		course, err = p.enrollments.GetCourse(ctx, courseID)
		if err != nil {
			return nil, false, fmt.Errorf("load course: %w", err)
		}
	}

	entries, err := p.students.ListProgress(ctx, email, courseID)
	if err != nil {
		return nil, false, fmt.Errorf("load progress: %w", err)
	}

	c := enrollment.ComputeProgress(course, email, entries)
	if err := p.enrollments.UpdateProgress(ctx, c); err != nil {
		if errors.Is(err, shared.ErrEnrollmentNotFound) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("update enrollment: %w", err)
	}

	return &c, false, nil
}
