package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/reconciliation"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
	"github.com/eduhub/eduhub-dashboard/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD PROGRESS COMMAND
// Writes a progress entry to the student store (authoritative), then updates
// the enrollment's aggregate in the enrollment store on a best-effort basis.
// A failed second half is recorded in the reconciliation ledger.
// ══════════════════════════════════════════════════════════════════════════════

// RecordProgressCommand contains the data of one progress update.
type RecordProgressCommand struct {
	StudentEmail string
	CourseID     string
	ModuleID     string
	Completed    bool
	QuizScore    *int
}

// RecordProgressResult contains the stored entry and any non-fatal warnings.
type RecordProgressResult struct {
	Entry *student.ProgressEntry

	// Progress is the propagated enrollment state, nil when not propagated.
	Progress *enrollment.ProgressChange

	Warnings []string
}

// RecordProgressHandler handles RecordProgressCommand.
type RecordProgressHandler struct {
	students    student.Repository
	propagator  propagator
	ledger      reconciliation.Ledger
	invalidator CacheInvalidator
	logger      *zap.Logger
}

// NewRecordProgressHandler creates a new RecordProgressHandler.
func NewRecordProgressHandler(
	students student.Repository,
	enrollments enrollment.Repository,
	ledger reconciliation.Ledger,
	invalidator CacheInvalidator,
	log *zap.Logger,
) *RecordProgressHandler {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordProgressHandler{
		students:    students,
		propagator:  propagator{students: students, enrollments: enrollments},
		ledger:      ledger,
		invalidator: invalidator,
		logger:      log.Named("record_progress"),
	}
}

// Handle executes the record progress command.
func (h *RecordProgressHandler) Handle(ctx context.Context, cmd RecordProgressCommand) (*RecordProgressResult, error) {
	u, err := student.NewProgressUpdate(cmd.StudentEmail, cmd.CourseID, cmd.ModuleID, cmd.Completed, cmd.QuizScore)
	if err != nil {
		return nil, fmt.Errorf("record_progress: %w", err)
	}

	log := logger.FromContext(ctx, h.logger).With(
		logger.StudentEmail(u.Email.String()),
		logger.CourseID(u.CourseID.String()),
		logger.ModuleID(u.ModuleID.String()),
	)

	defer func() {
		if err := invalidate(ctx, h.invalidator, u.Email.String()); err != nil {
			log.Warn("dashboard cache invalidation failed", zap.Error(err))
		}
	}()

	entry, err := h.students.UpsertProgress(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("record_progress: %w", err)
	}

	result := &RecordProgressResult{Entry: entry, Warnings: []string{}}

	change, skipped, err := h.propagator.propagate(ctx, u.Email, u.CourseID)
	switch {
	case err != nil:
		h.recordFailure(ctx, log, u, err)
		result.Warnings = append(result.Warnings, WarningReconciliationFailure)
	case skipped:
		log.Debug("no enrollment for course, propagation skipped")
	default:
		result.Progress = change
	}

	return result, nil
}

func (h *RecordProgressHandler) recordFailure(ctx context.Context, log *zap.Logger, u student.ProgressUpdate, cause error) {
	f := reconciliation.NewFailure(uuid.NewString(), u.Email, u.CourseID, u.ModuleID, cause)

	log.Warn("enrollment progress propagation failed",
		zap.String("failure_id", f.ID),
		zap.Error(cause),
	)

	if h.ledger == nil {
		log.Error("reconciliation ledger not configured, failure not recorded",
			zap.String("failure_id", f.ID),
			zap.Bool("completed", u.Completed),
			zap.Error(cause),
		)
		return
	}

	ctx, cancel := detached(ctx)
	defer cancel()
	if err := h.ledger.Record(ctx, f); err != nil {
		log.Error("failed to record reconciliation failure",
			zap.String("failure_id", f.ID),
			zap.Bool("completed", u.Completed),
			zap.String("reason", f.Reason),
			zap.NamedError("ledger_error", err),
		)
	}
}
