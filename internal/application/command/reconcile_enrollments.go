package command

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/reconciliation"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
	"github.com/eduhub/eduhub-dashboard/pkg/logger"
	"github.com/eduhub/eduhub-dashboard/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE ENROLLMENTS COMMAND
// Repairs enrollments whose progress update did not propagate. The student
// store is the source of truth, so each pending row is recomputed from it
// rather than replayed.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileEnrollmentsCommand configures one repair pass.
type ReconcileEnrollmentsCommand struct {
	// BatchSize is the maximum number of ledger rows processed.
	BatchSize int
}

// ReconcileEnrollmentsResult summarizes a pass.
type ReconcileEnrollmentsResult struct {
	Processed int
	Resolved  int
	Failed    int

	// Exhausted counts rows left pending after MaxAttempts.
	Exhausted int

	Duration time.Duration
}

// ReconcileEnrollmentsConfig contains configuration for the handler.
type ReconcileEnrollmentsConfig struct {
	BatchSize   int
	MaxAttempts int
}

// DefaultReconcileEnrollmentsConfig returns default configuration.
func DefaultReconcileEnrollmentsConfig() ReconcileEnrollmentsConfig {
	return ReconcileEnrollmentsConfig{
		BatchSize:   100,
		MaxAttempts: 10,
	}
}

// ReconcileEnrollmentsHandler handles ReconcileEnrollmentsCommand.
type ReconcileEnrollmentsHandler struct {
	propagator  propagator
	ledger      reconciliation.Ledger
	invalidator CacheInvalidator
	retrier     *retry.Retrier
	config      ReconcileEnrollmentsConfig
	logger      *zap.Logger
}

// NewReconcileEnrollmentsHandler creates a new handler.
func NewReconcileEnrollmentsHandler(
	students student.Repository,
	enrollments enrollment.Repository,
	ledger reconciliation.Ledger,
	invalidator CacheInvalidator,
	config ReconcileEnrollmentsConfig,
	log *zap.Logger,
) *ReconcileEnrollmentsHandler {
	defaults := DefaultReconcileEnrollmentsConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &ReconcileEnrollmentsHandler{
		propagator:  propagator{students: students, enrollments: enrollments},
		ledger:      ledger,
		invalidator: invalidator,
		retrier:     retry.DatabaseRetrier(),
		config:      config,
		logger:      log.Named("reconcile"),
	}
}

// Handle runs one repair pass.
func (h *ReconcileEnrollmentsHandler) Handle(ctx context.Context, cmd ReconcileEnrollmentsCommand) (*ReconcileEnrollmentsResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx, h.logger)

	batch := cmd.BatchSize
	if batch <= 0 {
		batch = h.config.BatchSize
	}

	pending, err := h.ledger.ListPending(ctx, batch, h.config.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("reconcile_enrollments: list pending: %w", err)
	}

	result := &ReconcileEnrollmentsResult{}
	for _, f := range pending {
		if err := ctx.Err(); err != nil {
			break
		}
		result.Processed++

		if h.repair(ctx, log, f) {
			result.Resolved++
		} else {
			result.Failed++
		}
	}

	exhausted, err := h.ledger.CountExhausted(ctx, h.config.MaxAttempts)
	if err != nil {
		log.Warn("failed to count exhausted reconciliation failures", zap.Error(err))
	}
	result.Exhausted = exhausted
	if exhausted > 0 {
		log.Error("reconciliation failures exceeded max attempts and need manual repair",
			zap.Int("count", exhausted),
			zap.Int("max_attempts", h.config.MaxAttempts),
		)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// repair recomputes one failure. It reports whether the row was resolved.
func (h *ReconcileEnrollmentsHandler) repair(ctx context.Context, log *zap.Logger, f *reconciliation.Failure) bool {
	log = log.With(
		zap.String("failure_id", f.ID),
		logger.StudentEmail(f.StudentEmail.String()),
		logger.CourseID(f.CourseID.String()),
		zap.Int("attempts", f.Attempts),
	)

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		_, _, err := h.propagator.propagate(ctx, f.StudentEmail, f.CourseID)
		if err != nil && shared.IsStoreUnavailable(err) {
			return retry.Retryable(err)
		}
		return err
	})
	now := time.Now().UTC()

	// The outcome is recorded even when the job is being stopped.
	lctx, cancel := detached(ctx)
	defer cancel()

	if err != nil {
		log.Warn("reconciliation attempt failed", zap.Error(err))
		if markErr := h.ledger.MarkAttempt(lctx, f.ID, err.Error(), now); markErr != nil {
			log.Error("failed to record reconciliation attempt", zap.NamedError("ledger_error", markErr))
		}
		return false
	}

	if err := h.ledger.MarkResolved(lctx, f.ID, now); err != nil {
		log.Error("failed to mark reconciliation failure resolved", zap.Error(err))
		return false
	}
	if err := invalidate(ctx, h.invalidator, f.StudentEmail.String()); err != nil {
		log.Warn("dashboard cache invalidation failed", zap.Error(err))
	}

	log.Info("enrollment reconciled")
	return true
}
