package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
	"github.com/eduhub/eduhub-dashboard/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL COMMAND
// Links a student (student store) to a course (enrollment store). Neither
// store can check the other, so the student reference is validated here and
// uniqueness is left to the enrollment store's constraint.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollCommand contains the data to enroll a student.
type EnrollCommand struct {
	StudentEmail string
	CourseID     string
}

// EnrollHandler handles EnrollCommand.
type EnrollHandler struct {
	students    student.Repository
	enrollments enrollment.Repository
	invalidator CacheInvalidator
	logger      *zap.Logger
}

// NewEnrollHandler creates a new EnrollHandler.
func NewEnrollHandler(
	students student.Repository,
	enrollments enrollment.Repository,
	invalidator CacheInvalidator,
	log *zap.Logger,
) *EnrollHandler {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EnrollHandler{
		students:    students,
		enrollments: enrollments,
		invalidator: invalidator,
		logger:      log.Named("enroll"),
	}
}

// Handle executes the enroll command.
//
// Errors: shared.ErrInvalidInput, shared.ErrNotFound (student or course),
// shared.ErrAlreadyEnrolled, shared.ErrStoreUnavailable.
func (h *EnrollHandler) Handle(ctx context.Context, cmd EnrollCommand) (*enrollment.Enrollment, error) {
	email, err := shared.NewEmail(cmd.StudentEmail)
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}
	courseID, err := shared.NewCourseID(cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}

	log := logger.FromContext(ctx, h.logger).With(
		logger.StudentEmail(email.String()),
		logger.CourseID(courseID.String()),
	)

	exists, err := h.students.Exists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("enroll: check student: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("enroll: %w", shared.ErrStudentNotFound)
	}

	course, err := h.enrollments.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("enroll: load course: %w", err)
	}

	e := enrollment.NewEnrollment(uuid.NewString(), email, courseID)
	if err := h.enrollments.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}
	e.Course = course

	if err := invalidate(ctx, h.invalidator, email.String()); err != nil {
		log.Warn("dashboard cache invalidation failed", zap.Error(err))
	}

	log.Info("student enrolled", zap.String("enrollment_id", e.ID))
	return e, nil
}
