package query

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/application/command"
	"github.com/eduhub/eduhub-dashboard/internal/domain/dashboard"
	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/persistence/memory"
)

const (
	testEmail  = "a@x.com"
	testCourse = "course-1"
)

type dashboardFixture struct {
	students    *memory.StudentStore
	enrollments *memory.EnrollmentStore
	cache       *memory.DashboardCache
	handler     *GetDashboardSummaryHandler
}

func newDashboardFixture(t *testing.T, cfg GetDashboardSummaryConfig) *dashboardFixture {
	t.Helper()

	f := &dashboardFixture{
		students:    memory.NewStudentStore(),
		enrollments: memory.NewEnrollmentStore(),
		cache:       memory.NewDashboardCache(),
	}

	s, err := student.NewStudent(student.NewStudentParams{ID: "s-1", Email: testEmail, DisplayName: "Ada"})
	require.NoError(t, err)
	require.NoError(t, f.students.Create(context.Background(), s))

	f.enrollments.AddCourse(enrollment.Course{ID: testCourse, Title: "Go 101", TeacherEmail: "t@x.com", TotalModules: 4})

	f.handler = NewGetDashboardSummaryHandler(f.students, f.enrollments, f.cache, zap.NewNop(), cfg)
	return f
}

func (f *dashboardFixture) enrollAndComplete(t *testing.T, modules ...string) {
	t.Helper()
	ctx := context.Background()

	_, err := command.NewEnrollHandler(f.students, f.enrollments, f.handler, zap.NewNop()).
		Handle(ctx, command.EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	require.NoError(t, err)

	rp := command.NewRecordProgressHandler(f.students, f.enrollments, memory.NewLedger(), f.handler, zap.NewNop())
	for _, m := range modules {
		_, err := rp.Handle(ctx, command.RecordProgressCommand{StudentEmail: testEmail, CourseID: testCourse, ModuleID: m, Completed: true})
		require.NoError(t, err)
	}
}

func TestGetDashboardSummary_ReflectsWrites(t *testing.T) {
	f := newDashboardFixture(t, GetDashboardSummaryConfig{})
	ctx := context.Background()

	before, err := f.handler.Handle(ctx, GetDashboardSummaryQuery{StudentEmail: testEmail})
	require.NoError(t, err)
	assert.Zero(t, before.EnrollmentCount)
	assert.True(t, f.cache.Has(testEmail))

	f.enrollAndComplete(t, "mod-1")

	after, err := f.handler.Handle(ctx, GetDashboardSummaryQuery{StudentEmail: "A@x.com"})
	require.NoError(t, err)
	assert.False(t, after.Partial)
	assert.Equal(t, "Ada", after.DisplayName)
	assert.Equal(t, 1, after.EnrollmentCount)
	assert.Equal(t, 1, after.LabsCompleted)
	assert.Equal(t, 4, after.TotalModules)
	assert.Equal(t, 25.0, after.CompletionPercent)

	require.Len(t, after.Enrollments, 1)
	view := after.Enrollments[0]
	assert.Equal(t, testCourse, view.CourseID)
	assert.Equal(t, "Go 101", view.CourseTitle)
	assert.Equal(t, 1, view.CompletedCount)
	assert.Equal(t, 25.0, view.ProgressPercent)
	assert.False(t, view.Completed)
}

func TestGetDashboardSummary_CacheHitSkipsStores(t *testing.T) {
	f := newDashboardFixture(t, GetDashboardSummaryConfig{})
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, GetDashboardSummaryQuery{StudentEmail: testEmail})
	require.NoError(t, err)

	var calls atomic.Int32
	f.students.SetHook(func(context.Context, string) error {
		calls.Add(1)
		return errors.New("should not be called")
	})

	got, err := f.handler.Handle(ctx, GetDashboardSummaryQuery{StudentEmail: testEmail})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.DisplayName)
	assert.Zero(t, calls.Load())
}

func TestGetDashboardSummary_PartialWhenEnrollmentStoreFails(t *testing.T) {
	f := newDashboardFixture(t, GetDashboardSummaryConfig{})
	f.enrollAndComplete(t, "mod-1", "mod-2")

	f.enrollments.SetHook(func(_ context.Context, op string) error {
		return shared.StoreUnavailable(shared.DomainEnrollmentStore, op, errors.New("connection refused"))
	})

	got, err := f.handler.Handle(context.Background(), GetDashboardSummaryQuery{StudentEmail: testEmail})
	require.NoError(t, err)
	assert.True(t, got.Partial)
	assert.Empty(t, got.Enrollments)
	assert.Equal(t, 2, got.LabsCompleted)
	assert.Equal(t, 100.0, got.CompletionPercent)
	assert.False(t, f.cache.Has(testEmail), "partial summaries are not cached")
}

func TestGetDashboardSummary_PartialWhenEnrollmentStoreSlow(t *testing.T) {
	f := newDashboardFixture(t, GetDashboardSummaryConfig{EnrollmentTimeout: 20 * time.Millisecond})
	f.enrollments.SetHook(func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	got, err := f.handler.Handle(context.Background(), GetDashboardSummaryQuery{StudentEmail: testEmail})
	require.NoError(t, err)
	assert.True(t, got.Partial)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGetDashboardSummary_Errors(t *testing.T) {
	t.Run("invalid email", func(t *testing.T) {
		f := newDashboardFixture(t, GetDashboardSummaryConfig{})
		_, err := f.handler.Handle(context.Background(), GetDashboardSummaryQuery{StudentEmail: "nope"})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("unknown student", func(t *testing.T) {
		f := newDashboardFixture(t, GetDashboardSummaryConfig{})
		_, err := f.handler.Handle(context.Background(), GetDashboardSummaryQuery{StudentEmail: "ghost@x.com"})
		assert.True(t, shared.IsNotFound(err))
		assert.False(t, f.cache.Has("ghost@x.com"))
	})

	t.Run("student store down", func(t *testing.T) {
		f := newDashboardFixture(t, GetDashboardSummaryConfig{})
		f.students.SetHook(func(_ context.Context, op string) error {
			return shared.StoreUnavailable(shared.DomainStudentStore, op, errors.New("dial tcp: refused"))
		})
		_, err := f.handler.Handle(context.Background(), GetDashboardSummaryQuery{StudentEmail: testEmail})
		assert.True(t, shared.IsStoreUnavailable(err))
	})
}

func TestGetDashboardSummary_CacheReadFailureServesFreshUncached(t *testing.T) {
	f := newDashboardFixture(t, GetDashboardSummaryConfig{})
	f.cache.SetHook(func(_ context.Context, op string) error {
		if op == "Get" {
			return errors.New("redis: i/o timeout")
		}
		return nil
	})

	got, err := f.handler.Handle(context.Background(), GetDashboardSummaryQuery{StudentEmail: testEmail})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.DisplayName)
	assert.False(t, f.cache.Has(testEmail))
}

func TestGetDashboardSummary_StaleWriteIsDropped(t *testing.T) {
	f := newDashboardFixture(t, GetDashboardSummaryConfig{})

	// A write lands while the summary is being computed.
	var once atomic.Bool
	f.students.SetHook(func(ctx context.Context, op string) error {
		if op == "GetByEmail" && once.CompareAndSwap(false, true) {
			return f.cache.Invalidate(ctx, testEmail)
		}
		return nil
	})

	_, err := f.handler.Handle(context.Background(), GetDashboardSummaryQuery{StudentEmail: testEmail})
	require.NoError(t, err)
	assert.False(t, f.cache.Has(testEmail))

	_, err = f.handler.Handle(context.Background(), GetDashboardSummaryQuery{StudentEmail: testEmail})
	require.NoError(t, err)
	assert.True(t, f.cache.Has(testEmail))
}

func TestGetDashboardSummary_ExpiredEntryIsRecomputed(t *testing.T) {
	f := newDashboardFixture(t, GetDashboardSummaryConfig{CacheTTL: time.Millisecond})
	ctx := context.Background()

	first, err := f.handler.Handle(ctx, GetDashboardSummaryQuery{StudentEmail: testEmail})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	f.handler.now = func() time.Time { return first.GeneratedAt.Add(time.Hour) }

	second, err := f.handler.Handle(ctx, GetDashboardSummaryQuery{StudentEmail: testEmail})
	require.NoError(t, err)
	assert.True(t, second.GeneratedAt.After(first.GeneratedAt))
}

func TestGetDashboardSummary_CancelledCallerDoesNotFailCoalescedCallers(t *testing.T) {
	f := newDashboardFixture(t, GetDashboardSummaryConfig{})

	entered := make(chan struct{})
	release := make(chan struct{})
	var reads atomic.Int32
	f.students.SetHook(func(_ context.Context, op string) error {
		if op == "GetByEmail" && reads.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	})

	joined := make(chan struct{})
	var gets atomic.Int32
	f.cache.SetHook(func(_ context.Context, op string) error {
		if op == "Get" && gets.Add(1) == 2 {
			close(joined)
		}
		return nil
	})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.handler.Handle(ctxA, GetDashboardSummaryQuery{StudentEmail: testEmail})
		errA <- err
	}()
	<-entered

	type result struct {
		summary *dashboard.Summary
		err     error
	}
	resB := make(chan result, 1)
	go func() {
		s, err := f.handler.Handle(context.Background(), GetDashboardSummaryQuery{StudentEmail: testEmail})
		resB <- result{s, err}
	}()
	<-joined
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	got := <-resB
	require.NoError(t, got.err)
	assert.Equal(t, "Ada", got.summary.DisplayName)
	assert.Equal(t, int32(1), reads.Load())
	assert.True(t, f.cache.Has(testEmail))
}

var _ dashboard.Cache = (*memory.DashboardCache)(nil)
