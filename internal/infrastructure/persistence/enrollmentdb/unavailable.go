package enrollmentdb

import (
	"context"
	"errors"

	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

var errNotConfigured = errors.New("enrollment store is not configured")

// UnavailableRepository stands in for the enrollment store when it is not
// configured. Every call reports the store as unavailable, so reads degrade
// to partial results and writes fail with 503.
type UnavailableRepository struct{}

func (UnavailableRepository) GetCourse(context.Context, shared.CourseID) (*enrollment.Course, error) {
	return nil, unavailable("GetCourse")
}

func (UnavailableRepository) GetEnrollment(context.Context, shared.Email, shared.CourseID) (*enrollment.Enrollment, error) {
	return nil, unavailable("GetEnrollment")
}

func (UnavailableRepository) ListByStudent(context.Context, shared.Email) ([]*enrollment.Enrollment, error) {
	return nil, unavailable("ListByStudent")
}

func (UnavailableRepository) Create(context.Context, *enrollment.Enrollment) error {
	return unavailable("Create")
}

func (UnavailableRepository) UpdateProgress(context.Context, enrollment.ProgressChange) error {
	return unavailable("UpdateProgress")
}

func (UnavailableRepository) Ping(context.Context) error {
	return unavailable("Ping")
}

func unavailable(op string) error {
	return shared.StoreUnavailable(shared.DomainEnrollmentStore, op, errNotConfigured)
}

var _ enrollment.Repository = UnavailableRepository{}
