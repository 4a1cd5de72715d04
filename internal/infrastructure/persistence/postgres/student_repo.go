package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

const studentColumns = `id, email, display_name, cohort, password_hash, status, created_at, updated_at`

const progressColumns = `course_id, module_id, completed, quiz_score, completed_at, recorded_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// Students
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (` + studentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.Email.String(),
		s.DisplayName,
		s.Cohort.String(),
		s.PasswordHash,
		string(s.Status),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return wrapErr("Create", err)
	}

	return nil
}

// GetByEmail returns a student with its progress entries.
func (r *StudentRepository) GetByEmail(ctx context.Context, email shared.Email) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE email = $1`

	s, err := scanStudent(r.conn.QueryRow(ctx, query, email.String()))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, wrapErr("GetByEmail", err)
	}

	progress, err := r.queryProgress(ctx,
		`SELECT `+progressColumns+` FROM progress_entries
		 WHERE student_email = $1
		 ORDER BY recorded_at, id`,
		email.String(),
	)
	if err != nil {
		return nil, wrapErr("GetByEmail", err)
	}
	s.Progress = progress

	return s, nil
}

// Exists checks whether a student record exists.
func (r *StudentRepository) Exists(ctx context.Context, email shared.Email) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM students WHERE email = $1)`,
		email.String(),
	).Scan(&exists)
	if err != nil {
		return false, wrapErr("Exists", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress
// ─────────────────────────────────────────────────────────────────────────────

// UpsertProgress writes one progress entry keyed by (email, course, module).
// Replaying the same update leaves a single row and keeps the first
// completed_at.
func (r *StudentRepository) UpsertProgress(ctx context.Context, u student.ProgressUpdate) (*student.ProgressEntry, error) {
	query := `
		INSERT INTO progress_entries (
			student_email, course_id, module_id, completed, quiz_score,
			completed_at, recorded_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			CASE WHEN $4::boolean THEN $6::timestamptz ELSE NULL END, $6, $6
		)
		ON CONFLICT (student_email, course_id, module_id) DO UPDATE SET
			completed = EXCLUDED.completed,
			quiz_score = EXCLUDED.quiz_score,
			completed_at = CASE
				WHEN EXCLUDED.completed THEN COALESCE(progress_entries.completed_at, EXCLUDED.completed_at)
				ELSE NULL
			END,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + progressColumns

	row := r.conn.QueryRow(ctx, query,
		u.Email.String(),
		u.CourseID.String(),
		u.ModuleID.String(),
		u.Completed,
		u.QuizScore,
		time.Now().UTC(),
	)

	entry, err := scanProgress(row)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, wrapErr("UpsertProgress", err)
	}

	return entry, nil
}

// ListProgress returns the student's entries for one course.
func (r *StudentRepository) ListProgress(ctx context.Context, email shared.Email, courseID shared.CourseID) ([]student.ProgressEntry, error) {
	entries, err := r.queryProgress(ctx,
		`SELECT `+progressColumns+` FROM progress_entries
		 WHERE student_email = $1 AND course_id = $2
		 ORDER BY recorded_at, id`,
		email.String(), courseID.String(),
	)
	if err != nil {
		return nil, wrapErr("ListProgress", err)
	}
	return entries, nil
}

// Ping checks the student store connection.
func (r *StudentRepository) Ping(ctx context.Context) error {
	if err := r.conn.Ping(ctx); err != nil {
		return shared.StoreUnavailable(shared.DomainStudentStore, "Ping", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func (r *StudentRepository) queryProgress(ctx context.Context, query string, args ...any) ([]student.ProgressEntry, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]student.ProgressEntry, 0)
	for rows.Next() {
		e, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	return entries, rows.Err()
}

func scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var email, cohort, status string

	err := row.Scan(
		&s.ID,
		&email,
		&s.DisplayName,
		&cohort,
		&s.PasswordHash,
		&status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Email = shared.Email(email)
	s.Cohort = student.Cohort(cohort)
	s.Status = student.Status(status)

	return &s, nil
}

func scanProgress(row pgx.Row) (*student.ProgressEntry, error) {
	var e student.ProgressEntry
	var courseID, moduleID string

	err := row.Scan(
		&courseID,
		&moduleID,
		&e.Completed,
		&e.QuizScore,
		&e.CompletedAt,
		&e.RecordedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan progress entry: %w", err)
	}

	e.CourseID = shared.CourseID(courseID)
	e.ModuleID = shared.ModuleID(moduleID)

	return &e, nil
}
