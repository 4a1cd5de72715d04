package postgres

import (
	"context"
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/reconciliation"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

// ReconciliationRepository implements reconciliation.Ledger in the student
// store, which has just accepted the authoritative half of the write.
type ReconciliationRepository struct {
	conn *Connection
}

// NewReconciliationRepository creates a new ReconciliationRepository.
func NewReconciliationRepository(conn *Connection) *ReconciliationRepository {
	return &ReconciliationRepository{conn: conn}
}

// Record stores a pending failure.
func (r *ReconciliationRepository) Record(ctx context.Context, f *reconciliation.Failure) error {
	query := `
		INSERT INTO reconciliation_failures (
			id, student_email, course_id, module_id, reason, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.Exec(ctx, query,
		f.ID,
		f.StudentEmail.String(),
		f.CourseID.String(),
		f.ModuleID.String(),
		f.Reason,
		f.Attempts,
		f.CreatedAt,
	)
	if err != nil {
		return wrapErr("RecordReconciliation", err)
	}

	return nil
}

// ListPending returns unresolved failures below maxAttempts, oldest first.
func (r *ReconciliationRepository) ListPending(ctx context.Context, limit, maxAttempts int) ([]*reconciliation.Failure, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, student_email, course_id, module_id, reason, attempts,
		       created_at, last_attempt_at, resolved_at
		FROM reconciliation_failures
		WHERE resolved_at IS NULL
		  AND ($2 <= 0 OR attempts < $2)
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, limit, maxAttempts)
	if err != nil {
		return nil, wrapErr("ListPending", err)
	}
	defer rows.Close()

	failures := make([]*reconciliation.Failure, 0)
	for rows.Next() {
		var f reconciliation.Failure
		var email, courseID, moduleID string

		if err := rows.Scan(
			&f.ID,
			&email,
			&courseID,
			&moduleID,
			&f.Reason,
			&f.Attempts,
			&f.CreatedAt,
			&f.LastAttemptAt,
			&f.ResolvedAt,
		); err != nil {
			return nil, wrapErr("ListPending", err)
		}

		f.StudentEmail = shared.Email(email)
		f.CourseID = shared.CourseID(courseID)
		f.ModuleID = shared.ModuleID(moduleID)
		failures = append(failures, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("ListPending", err)
	}

	return failures, nil
}

// CountExhausted counts unresolved failures that ran out of attempts.
func (r *ReconciliationRepository) CountExhausted(ctx context.Context, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}

	var n int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM reconciliation_failures WHERE resolved_at IS NULL AND attempts >= $1`,
		maxAttempts,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr("CountExhausted", err)
	}
	return n, nil
}

// MarkResolved closes a failure.
func (r *ReconciliationRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	_, err := r.conn.Exec(ctx,
		`UPDATE reconciliation_failures SET resolved_at = $1, last_attempt_at = $1 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return wrapErr("MarkResolved", err)
	}
	return nil
}

// MarkAttempt records a failed repair attempt.
func (r *ReconciliationRepository) MarkAttempt(ctx context.Context, id string, reason string, at time.Time) error {
	_, err := r.conn.Exec(ctx,
		`UPDATE reconciliation_failures
		 SET attempts = attempts + 1, reason = $1, last_attempt_at = $2
		 WHERE id = $3`,
		reason, at, id,
	)
	if err != nil {
		return wrapErr("MarkAttempt", err)
	}
	return nil
}
