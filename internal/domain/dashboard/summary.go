// Package dashboard defines the derived dashboard summary and the cache
// contract used to accelerate it. A summary is never the source of truth.
package dashboard

import (
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
)

// EnrollmentView is an enrollment as shown on the dashboard.
type EnrollmentView struct {
	CourseID        string    `json:"courseId"`
	CourseTitle     string    `json:"courseTitle,omitempty"`
	TeacherEmail    string    `json:"teacherEmail,omitempty"`
	TotalModules    int       `json:"totalModules"`
	CompletedCount  int       `json:"completedModules"`
	EnrolledAt      time.Time `json:"enrolledAt"`
	Completed       bool      `json:"completed"`
	ProgressPercent float64   `json:"progressPercent"`
}

// Summary is the aggregated dashboard view of one student.
type Summary struct {
	StudentEmail      string           `json:"studentEmail"`
	DisplayName       string           `json:"displayName"`
	Enrollments       []EnrollmentView `json:"enrollments"`
	EnrollmentCount   int              `json:"enrollmentCount"`
	CoursesCompleted  int              `json:"coursesCompleted"`
	LabsCompleted     int              `json:"labsCompleted"`
	TotalModules      int              `json:"totalModules"`
	CompletionPercent float64          `json:"completionPercent"`

	// Partial is set when the enrollment store could not be read.
	Partial     bool      `json:"partial"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Build merges a student record with their enrollments.
//
// With enrollments available, the percentage is completed modules of the
// enrolled courses over the sum of their assigned modules, capped per course.
// When partial is true the enrollments are unknown and the percentage falls
// back to completed entries over all recorded entries.
func Build(s *student.Student, enrollments []*enrollment.Enrollment, partial bool, now time.Time) *Summary {
	sum := &Summary{
		StudentEmail:  s.Email.String(),
		DisplayName:   s.DisplayName,
		Enrollments:   make([]EnrollmentView, 0, len(enrollments)),
		LabsCompleted: student.CountCompleted(s.Progress),
		Partial:       partial,
		GeneratedAt:   now.UTC(),
	}

	if partial {
		sum.TotalModules = len(s.Progress)
		sum.CompletionPercent = student.Percent(sum.LabsCompleted, sum.TotalModules)
		return sum
	}

	completedInEnrolled := 0
	for _, e := range enrollments {
		view := EnrollmentView{
			CourseID:   e.CourseID.String(),
			EnrolledAt: e.EnrolledAt,
		}
		done := s.CompletedModules(e.CourseID)
		view.CompletedCount = done

		if e.Course != nil {
			view.CourseTitle = e.Course.Title
			view.TeacherEmail = e.Course.TeacherEmail.String()
			view.TotalModules = e.Course.TotalModules
			if done > e.Course.TotalModules {
				done = e.Course.TotalModules
			}
			view.ProgressPercent = student.Percent(done, e.Course.TotalModules)
			view.Completed = e.Course.TotalModules > 0 && done >= e.Course.TotalModules
			completedInEnrolled += done
		} else {
			// Course row missing: fall back to the stored enrollment state.
			view.ProgressPercent = e.ProgressPercent
			view.Completed = e.Completed
		}

		if view.Completed {
			sum.CoursesCompleted++
		}
		sum.TotalModules += view.TotalModules
		sum.Enrollments = append(sum.Enrollments, view)
	}

	sum.EnrollmentCount = len(sum.Enrollments)
	sum.CompletionPercent = student.Percent(completedInEnrolled, sum.TotalModules)

	return sum
}
