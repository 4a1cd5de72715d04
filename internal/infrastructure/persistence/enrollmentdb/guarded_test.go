package enrollmentdb

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/application/query"
	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/persistence/memory"
	"github.com/eduhub/eduhub-dashboard/pkg/circuitbreaker"
)

func newGuarded(t *testing.T) (*GuardedRepository, *memory.EnrollmentStore) {
	t.Helper()
	store := memory.NewEnrollmentStore()
	store.AddCourse(enrollment.Course{ID: "course-1", Title: "Go 101", TotalModules: 4})
	return NewGuardedRepository(store, nil), store
}

func TestGuardedRepository_OutagesOpenBreaker(t *testing.T) {
	g, store := newGuarded(t)
	ctx := context.Background()

	var calls atomic.Int32
	store.SetHook(func(_ context.Context, op string) error {
		calls.Add(1)
		return mapErr(op, &connReset{}, nil)
	})

	for i := 0; i < 5; i++ {
		_, err := g.ListByStudent(ctx, "a@x.com")
		require.True(t, shared.IsStoreUnavailable(err))
	}
	assert.True(t, g.Breaker().IsOpen())

	_, err := g.ListByStudent(ctx, "a@x.com")
	assert.True(t, shared.IsStoreUnavailable(err))
	assert.True(t, circuitbreaker.IsRejected(err))
	assert.Equal(t, int32(5), calls.Load(), "open breaker does not reach the store")
}

func TestGuardedRepository_CancellationsDoNotOpenBreaker(t *testing.T) {
	g, store := newGuarded(t)
	store.SetHook(func(ctx context.Context, op string) error {
		if err := ctx.Err(); err != nil {
			return mapErr(op, err, nil)
		}
		return nil
	})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 10; i++ {
		_, err := g.ListByStudent(cancelled, "a@x.com")
		require.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, circuitbreaker.StateClosed, g.Breaker().State())
	list, err := g.ListByStudent(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGuardedRepository_NotFoundIsNormalTraffic(t *testing.T) {
	g, _ := newGuarded(t)

	for i := 0; i < 10; i++ {
		_, err := g.GetCourse(context.Background(), "missing")
		require.True(t, shared.IsNotFound(err))
	}
	assert.False(t, g.Breaker().IsOpen())
}

func TestGuardedRepository_DashboardDegradesToPartial(t *testing.T) {
	g, store := newGuarded(t)
	ctx := context.Background()

	students := memory.NewStudentStore()
	s, err := student.NewStudent(student.NewStudentParams{ID: "s-1", Email: "a@x.com", DisplayName: "Ada"})
	require.NoError(t, err)
	require.NoError(t, students.Create(ctx, s))
	require.NoError(t, store.Create(ctx, enrollment.NewEnrollment("e-1", "a@x.com", "course-1")))

	h := query.NewGetDashboardSummaryHandler(students, g, nil, zap.NewNop(), query.GetDashboardSummaryConfig{})

	got, err := h.Handle(ctx, query.GetDashboardSummaryQuery{StudentEmail: "a@x.com"})
	require.NoError(t, err)
	assert.False(t, got.Partial)
	assert.Equal(t, 1, got.EnrollmentCount)

	store.SetHook(func(_ context.Context, op string) error {
		return mapErr(op, &connReset{}, nil)
	})
	for i := 0; i < 6; i++ {
		got, err = h.Handle(ctx, query.GetDashboardSummaryQuery{StudentEmail: "a@x.com"})
		require.NoError(t, err)
		assert.True(t, got.Partial)
		assert.Equal(t, "Ada", got.DisplayName)
	}
	assert.True(t, g.Breaker().IsOpen())
}

func TestUnavailableRepository(t *testing.T) {
	var repo enrollment.Repository = UnavailableRepository{}
	ctx := context.Background()

	_, err := repo.ListByStudent(ctx, "a@x.com")
	assert.True(t, shared.IsStoreUnavailable(err))
	assert.True(t, shared.IsStoreUnavailable(repo.Create(ctx, newEnrollment())))
	assert.True(t, shared.IsStoreUnavailable(repo.Ping(ctx)))
}

// connReset is a network error as the driver reports a dropped connection.
type connReset struct{}

func (*connReset) Error() string   { return "read tcp 10.0.0.2:5432: connection reset by peer" }
func (*connReset) Timeout() bool   { return false }
func (*connReset) Temporary() bool { return false }

var _ net.Error = (*connReset)(nil)
