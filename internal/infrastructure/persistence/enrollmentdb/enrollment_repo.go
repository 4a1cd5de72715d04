package enrollmentdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

// Repository implements enrollment.Repository on gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db.Gorm()}
}

func (r *Repository) GetCourse(ctx context.Context, id shared.CourseID) (*enrollment.Course, error) {
	var m CourseModel
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&m).Error
	if err != nil {
		return nil, mapErr("GetCourse", err, shared.ErrCourseNotFound)
	}
	return m.toDomain(), nil
}

func (r *Repository) GetEnrollment(ctx context.Context, email shared.Email, courseID shared.CourseID) (*enrollment.Enrollment, error) {
	var m EnrollmentModel
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("student_email = ? AND course_id = ?", email.String(), courseID.String()).
		First(&m).Error
	if err != nil {
		return nil, mapErr("GetEnrollment", err, shared.ErrEnrollmentNotFound)
	}
	return m.toDomain(), nil
}

func (r *Repository) ListByStudent(ctx context.Context, email shared.Email) ([]*enrollment.Enrollment, error) {
	var rows []EnrollmentModel
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("student_email = ?", email.String()).
		Order("enrolled_at ASC, course_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, mapErr("ListByStudent", err, nil)
	}

	result := make([]*enrollment.Enrollment, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

// Create inserts an enrollment. The unique index on (student_email,
// course_id) decides concurrent duplicates: exactly one insert wins.
func (r *Repository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	m := enrollmentFromDomain(e)
	err := r.db.WithContext(ctx).Omit("Course").Create(m).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrDuplicateEnroll
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return shared.ErrCourseNotFound
	default:
		return mapErr("Create", err, nil)
	}
}

func (r *Repository) UpdateProgress(ctx context.Context, change enrollment.ProgressChange) error {
	res := r.db.WithContext(ctx).
		Model(&EnrollmentModel{}).
		Where("student_email = ? AND course_id = ?", change.StudentEmail.String(), change.CourseID.String()).
		Updates(map[string]any{
			"progress_percent": change.ProgressPercent,
			"completed":        change.Completed,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return mapErr("UpdateProgress", res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return shared.ErrEnrollmentNotFound
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return shared.StoreUnavailable(shared.DomainEnrollmentStore, "Ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return shared.StoreUnavailable(shared.DomainEnrollmentStore, "Ping", err)
	}
	return nil
}

// CreateTeacher and CreateCourse seed reference data owned by this store.

func (r *Repository) CreateTeacher(ctx context.Context, t *enrollment.Teacher) error {
	m := &TeacherModel{
		ID:          t.ID,
		Email:       t.Email.String(),
		DisplayName: t.DisplayName,
		Subject:     t.Subject,
		CreatedAt:   t.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.DomainEnrollmentStore, "CreateTeacher", shared.ErrAlreadyExists, "teacher already exists")
		}
		return mapErr("CreateTeacher", err, nil)
	}
	return nil
}

func (r *Repository) CreateCourse(ctx context.Context, c *enrollment.Course) error {
	m := &CourseModel{
		ID:           c.ID.String(),
		Title:        c.Title,
		TotalModules: c.TotalModules,
		CreatedAt:    c.CreatedAt,
	}
	if c.TeacherEmail != "" {
		email := c.TeacherEmail.String()
		m.TeacherEmail = &email
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return shared.NewDomainError(shared.DomainEnrollmentStore, "CreateCourse", shared.ErrAlreadyExists, "course already exists")
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return shared.ErrTeacherNotFound
		}
		return mapErr("CreateCourse", err, nil)
	}
	return nil
}

// mapErr translates gorm and driver errors into the enrollment_store domain.
func mapErr(op string, err error, notFound error) error {
	if notFound != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if errors.Is(err, context.Canceled) {
		return shared.WrapError(shared.DomainEnrollmentStore, op, context.Canceled, "request cancelled", err)
	}
	if isUnavailable(err) {
		return shared.StoreUnavailable(shared.DomainEnrollmentStore, op, err)
	}
	return shared.WrapError(shared.DomainEnrollmentStore, op, shared.ErrExternalService, "query failed", err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}

	return pgconn.Timeout(err)
}
