// Package enrollment models the teacher/enrollment store: teachers, the
// courses they own, and the student-to-course enrollment links.
//
// Enrollment.StudentEmail references the separate student store. The store
// enforces (StudentEmail, CourseID) uniqueness, but cannot check that the
// student exists, so callers validate the reference at write time.
package enrollment

import (
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
)

// Teacher owns courses.
type Teacher struct {
	ID          string
	Email       shared.Email
	DisplayName string
	Subject     string
	CreatedAt   time.Time
}

// Course is a unit of enrollment with a fixed number of assigned modules.
type Course struct {
	ID           shared.CourseID
	Title        string
	TeacherEmail shared.Email
	TotalModules int
	CreatedAt    time.Time
}

// Enrollment links one student to one course.
type Enrollment struct {
	ID              string
	StudentEmail    shared.Email
	CourseID        shared.CourseID
	EnrolledAt      time.Time
	Completed       bool
	ProgressPercent float64
	UpdatedAt       time.Time

	// Course is populated by list queries and may be nil.
	Course *Course
}

// NewEnrollment creates a fresh enrollment at 0%.
func NewEnrollment(id string, email shared.Email, courseID shared.CourseID) *Enrollment {
	now := time.Now().UTC()
	return &Enrollment{
		ID:           id,
		StudentEmail: email,
		CourseID:     courseID,
		EnrolledAt:   now,
		UpdatedAt:    now,
	}
}

// ProgressChange is the propagated state of a course for one student.
type ProgressChange struct {
	StudentEmail    shared.Email
	CourseID        shared.CourseID
	ProgressPercent float64
	Completed       bool
}

// ComputeProgress derives the enrollment progress from the student's
// progress entries for the course.
func ComputeProgress(course *Course, email shared.Email, entries []student.ProgressEntry) ProgressChange {
	done := student.CountCompleted(entries)
	return ProgressChange{
		StudentEmail:    email,
		CourseID:        course.ID,
		ProgressPercent: student.Percent(done, course.TotalModules),
		Completed:       course.TotalModules > 0 && done >= course.TotalModules,
	}
}
