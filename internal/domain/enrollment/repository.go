package enrollment

import (
	"context"

	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

// Repository is the teacher/enrollment store. Connectivity failures are
// reported as shared.ErrStoreUnavailable in the enrollment_store domain.
type Repository interface {
	// GetCourse returns shared.ErrCourseNotFound when absent.
	GetCourse(ctx context.Context, id shared.CourseID) (*Course, error)

	// GetEnrollment returns shared.ErrEnrollmentNotFound when absent.
	GetEnrollment(ctx context.Context, email shared.Email, courseID shared.CourseID) (*Enrollment, error)

	// ListByStudent returns the student's enrollments with Course populated,
	// oldest first.
	ListByStudent(ctx context.Context, email shared.Email) ([]*Enrollment, error)

	// Create inserts the enrollment. A (StudentEmail, CourseID) conflict
	// returns an error matching shared.ErrAlreadyEnrolled.
	Create(ctx context.Context, e *Enrollment) error

	// UpdateProgress applies a propagated progress change.
	// Returns shared.ErrEnrollmentNotFound when there is no enrollment.
	UpdateProgress(ctx context.Context, change ProgressChange) error

	Ping(ctx context.Context) error
}
