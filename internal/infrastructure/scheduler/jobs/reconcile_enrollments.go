// Package jobs contains the worker's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/application/command"
	"github.com/eduhub/eduhub-dashboard/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE ENROLLMENTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// Reconciler runs one repair pass over the reconciliation ledger.
type Reconciler interface {
	Handle(ctx context.Context, cmd command.ReconcileEnrollmentsCommand) (*command.ReconcileEnrollmentsResult, error)
}

// ReconcileEnrollmentsJob heals enrollment progress that failed to propagate.
type ReconcileEnrollmentsJob struct {
	reconciler Reconciler
	batchSize  int
	logger     *zap.Logger

	last atomic.Pointer[command.ReconcileEnrollmentsResult]
}

// NewReconcileEnrollmentsJob creates the job. batchSize <= 0 uses the handler's default.
func NewReconcileEnrollmentsJob(reconciler Reconciler, batchSize int, log *zap.Logger) *ReconcileEnrollmentsJob {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconcileEnrollmentsJob{reconciler: reconciler, batchSize: batchSize, logger: log}
}

func (j *ReconcileEnrollmentsJob) Name() string { return "reconcile_enrollments" }

func (j *ReconcileEnrollmentsJob) Description() string {
	return "Recomputes enrollment progress for pending reconciliation failures"
}

// Run executes one pass.
func (j *ReconcileEnrollmentsJob) Run(ctx context.Context) error {
	res, err := j.reconciler.Handle(ctx, command.ReconcileEnrollmentsCommand{BatchSize: j.batchSize})
	if err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}
	j.last.Store(res)

	if res.Processed > 0 || res.Exhausted > 0 {
		logger.FromContext(ctx, j.logger).Info("reconciliation pass finished",
			zap.Int("processed", res.Processed),
			zap.Int("resolved", res.Resolved),
			zap.Int("failed", res.Failed),
			zap.Int("exhausted", res.Exhausted),
			logger.Latency(res.Duration),
		)
	}
	return nil
}

// LastResult returns the result of the most recent successful pass, or nil.
func (j *ReconcileEnrollmentsJob) LastResult() *command.ReconcileEnrollmentsResult {
	return j.last.Load()
}
