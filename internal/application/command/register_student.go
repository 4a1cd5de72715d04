package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
	"github.com/eduhub/eduhub-dashboard/pkg/logger"
)

// MinPasswordLength is the shortest accepted registration password.
const MinPasswordLength = 8

// RegisterStudentCommand contains the registration data.
type RegisterStudentCommand struct {
	Email       string
	DisplayName string
	Cohort      string
	Password    string
}

// Validate validates the command.
func (c RegisterStudentCommand) Validate() error {
	if len(c.Password) < MinPasswordLength {
		return shared.NewDomainError(shared.DomainStudentStore, "Register", shared.ErrInvalidInput,
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	// bcrypt ignores everything past 72 bytes.
	if len(c.Password) > 72 {
		return shared.NewDomainError(shared.DomainStudentStore, "Register", shared.ErrInvalidInput, "password is too long")
	}
	return nil
}

// RegisterStudentHandler creates student records.
type RegisterStudentHandler struct {
	students   student.Repository
	logger     *zap.Logger
	bcryptCost int
}

// NewRegisterStudentHandler creates a new RegisterStudentHandler.
// A zero cost uses bcrypt.DefaultCost.
func NewRegisterStudentHandler(students student.Repository, log *zap.Logger, bcryptCost int) *RegisterStudentHandler {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RegisterStudentHandler{students: students, logger: log.Named("register"), bcryptCost: bcryptCost}
}

// Handle registers a student. A taken email is shared.ErrAlreadyExists.
func (h *RegisterStudentHandler) Handle(ctx context.Context, cmd RegisterStudentCommand) (*student.Student, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_student: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), h.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("register_student: hash password: %w", err)
	}

	s, err := student.NewStudent(student.NewStudentParams{
		ID:           uuid.NewString(),
		Email:        cmd.Email,
		DisplayName:  cmd.DisplayName,
		Cohort:       student.Cohort(strings.TrimSpace(cmd.Cohort)),
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, fmt.Errorf("register_student: %w", err)
	}

	if err := h.students.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("register_student: %w", err)
	}

	logger.FromContext(ctx, h.logger).Info("student registered",
		logger.StudentEmail(s.Email.String()),
		zap.String("cohort", s.Cohort.String()),
	)
	return s, nil
}
