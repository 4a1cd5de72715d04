package enrollmentdb

import (
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

// TeacherModel maps the teachers table.
type TeacherModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	Email       string    `gorm:"size:254;not null;uniqueIndex:teachers_email_key"`
	DisplayName string    `gorm:"size:100;not null"`
	Subject     string    `gorm:"size:100;not null;default:''"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (TeacherModel) TableName() string { return "teachers" }

// CourseModel maps the courses table.
type CourseModel struct {
	ID           string    `gorm:"size:64;primaryKey"`
	Title        string    `gorm:"size:200;not null"`
	TeacherEmail *string   `gorm:"size:254;index:idx_courses_teacher"`
	TotalModules int       `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (CourseModel) TableName() string { return "courses" }

// EnrollmentModel maps the enrollments table. The composite unique index
// is the store-level guard against double enrollment.
type EnrollmentModel struct {
	ID              string       `gorm:"type:uuid;primaryKey"`
	StudentEmail    string       `gorm:"size:254;not null;uniqueIndex:enrollments_student_course_key,priority:1;index:idx_enrollments_student"`
	CourseID        string       `gorm:"size:64;not null;uniqueIndex:enrollments_student_course_key,priority:2"`
	EnrolledAt      time.Time    `gorm:"not null"`
	Completed       bool         `gorm:"not null;default:false"`
	ProgressPercent float64      `gorm:"not null;default:0"`
	UpdatedAt       time.Time    `gorm:"not null"`
	Course          *CourseModel `gorm:"foreignKey:CourseID;references:ID"`
}

func (EnrollmentModel) TableName() string { return "enrollments" }

func (m *CourseModel) toDomain() *enrollment.Course {
	c := &enrollment.Course{
		ID:           shared.CourseID(m.ID),
		Title:        m.Title,
		TotalModules: m.TotalModules,
		CreatedAt:    m.CreatedAt,
	}
	if m.TeacherEmail != nil {
		c.TeacherEmail = shared.Email(*m.TeacherEmail)
	}
	return c
}

func (m *EnrollmentModel) toDomain() *enrollment.Enrollment {
	e := &enrollment.Enrollment{
		ID:              m.ID,
		StudentEmail:    shared.Email(m.StudentEmail),
		CourseID:        shared.CourseID(m.CourseID),
		EnrolledAt:      m.EnrolledAt,
		Completed:       m.Completed,
		ProgressPercent: m.ProgressPercent,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.Course != nil {
		e.Course = m.Course.toDomain()
	}
	return e
}

func enrollmentFromDomain(e *enrollment.Enrollment) *EnrollmentModel {
	return &EnrollmentModel{
		ID:              e.ID,
		StudentEmail:    e.StudentEmail.String(),
		CourseID:        e.CourseID.String(),
		EnrolledAt:      e.EnrolledAt,
		Completed:       e.Completed,
		ProgressPercent: e.ProgressPercent,
		UpdatedAt:       e.UpdatedAt,
	}
}
