package enrollmentdb

import (
	"context"

	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/pkg/circuitbreaker"
)

// GuardedRepository wraps an enrollment.Repository with a circuit breaker.
// Only store outages trip the breaker, cancelled requests do not; while it is open every
// call fails fast with shared.ErrStoreUnavailable.
type GuardedRepository struct {
	next    enrollment.Repository
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedRepository wraps next with the given breaker. A nil breaker
// gets the EnrollmentStoreBreaker preset.
func NewGuardedRepository(next enrollment.Repository, breaker *circuitbreaker.CircuitBreaker) *GuardedRepository {
	if breaker == nil {
		breaker = circuitbreaker.EnrollmentStoreBreaker(nil, shared.IsStoreOutage)
	}
	return &GuardedRepository{next: next, breaker: breaker}
}

// Breaker exposes the breaker for health reporting.
func (g *GuardedRepository) Breaker() *circuitbreaker.CircuitBreaker {
	return g.breaker
}

func (g *GuardedRepository) GetCourse(ctx context.Context, id shared.CourseID) (*enrollment.Course, error) {
	var c *enrollment.Course
	err := g.run(ctx, "GetCourse", func(ctx context.Context) error {
		var err error
		c, err = g.next.GetCourse(ctx, id)
		return err
	})
	return c, err
}

func (g *GuardedRepository) GetEnrollment(ctx context.Context, email shared.Email, courseID shared.CourseID) (*enrollment.Enrollment, error) {
	var e *enrollment.Enrollment
	err := g.run(ctx, "GetEnrollment", func(ctx context.Context) error {
		var err error
		e, err = g.next.GetEnrollment(ctx, email, courseID)
		return err
	})
	return e, err
}

func (g *GuardedRepository) ListByStudent(ctx context.Context, email shared.Email) ([]*enrollment.Enrollment, error) {
	var list []*enrollment.Enrollment
	err := g.run(ctx, "ListByStudent", func(ctx context.Context) error {
		var err error
		list, err = g.next.ListByStudent(ctx, email)
		return err
	})
	return list, err
}

func (g *GuardedRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	return g.run(ctx, "Create", func(ctx context.Context) error {
		return g.next.Create(ctx, e)
	})
}

func (g *GuardedRepository) UpdateProgress(ctx context.Context, change enrollment.ProgressChange) error {
	return g.run(ctx, "UpdateProgress", func(ctx context.Context) error {
		return g.next.UpdateProgress(ctx, change)
	})
}

// Ping bypasses the breaker so health checks observe the real store.
func (g *GuardedRepository) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}

func (g *GuardedRepository) run(ctx context.Context, op string, fn func(context.Context) error) error {
	err := g.breaker.Execute(ctx, fn)
	if circuitbreaker.IsRejected(err) {
		return shared.StoreUnavailable(shared.DomainEnrollmentStore, op, err)
	}
	return err
}

var _ enrollment.Repository = (*GuardedRepository)(nil)
