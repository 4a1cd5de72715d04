package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eduhub/eduhub-dashboard/internal/domain/dashboard"
	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/persistence/memory"
	"github.com/eduhub/eduhub-dashboard/pkg/retry"
)

const (
	testEmail  = "a@x.com"
	testCourse = "course-1"
)

type fixture struct {
	students    *memory.StudentStore
	enrollments *memory.EnrollmentStore
	ledger      *memory.Ledger
	cache       *memory.DashboardCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		students:    memory.NewStudentStore(),
		enrollments: memory.NewEnrollmentStore(),
		ledger:      memory.NewLedger(),
		cache:       memory.NewDashboardCache(),
	}

	s, err := student.NewStudent(student.NewStudentParams{ID: "s-1", Email: testEmail, DisplayName: "Ada"})
	require.NoError(t, err)
	require.NoError(t, f.students.Create(context.Background(), s))

	f.enrollments.AddCourse(enrollment.Course{ID: testCourse, Title: "Go 101", TeacherEmail: "t@x.com", TotalModules: 4})

	return f
}

func (f *fixture) enroll() *EnrollHandler {
	return NewEnrollHandler(f.students, f.enrollments, f.cache, zap.NewNop())
}

func (f *fixture) recordProgress() *RecordProgressHandler {
	return NewRecordProgressHandler(f.students, f.enrollments, f.ledger, f.cache, zap.NewNop())
}

func (f *fixture) reconcile(maxAttempts int) *ReconcileEnrollmentsHandler {
	h := NewReconcileEnrollmentsHandler(f.students, f.enrollments, f.ledger, f.cache,
		ReconcileEnrollmentsConfig{BatchSize: 10, MaxAttempts: maxAttempts}, zap.NewNop())
	h.retrier = retry.New(retry.WithMaxAttempts(1))
	return h
}

func enrollmentDown(op string) memory.Hook {
	return func(_ context.Context, got string) error {
		if op == "" || got == op {
			return shared.StoreUnavailable(shared.DomainEnrollmentStore, got, errors.New("connection refused"))
		}
		return nil
	}
}

func primeCache(t *testing.T, c *memory.DashboardCache) {
	t.Helper()
	_, gen, _ := c.Get(context.Background(), testEmail)
	require.NoError(t, c.Set(context.Background(), testEmail, gen, &dashboard.Summary{StudentEmail: testEmail}, time.Minute))
	require.True(t, c.Has(testEmail))
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL
// ══════════════════════════════════════════════════════════════════════════════

func TestEnroll_SecondAttemptIsAlreadyEnrolled(t *testing.T) {
	f := newFixture(t)
	h := f.enroll()
	ctx := context.Background()

	e, err := h.Handle(ctx, EnrollCommand{StudentEmail: "A@X.com", CourseID: testCourse})
	require.NoError(t, err)
	assert.Equal(t, shared.Email(testEmail), e.StudentEmail)
	assert.Equal(t, "Go 101", e.Course.Title)
	assert.Zero(t, e.ProgressPercent)

	_, err = h.Handle(ctx, EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	assert.True(t, shared.IsAlreadyEnrolled(err))
	assert.Equal(t, 1, f.enrollments.Count())
}

func TestEnroll_ConcurrentExactlyOneSucceeds(t *testing.T) {
	f := newFixture(t)
	h := f.enroll()

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Handle(context.Background(), EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case shared.IsAlreadyEnrolled(err):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, f.enrollments.Count())
}

func TestEnroll_Errors(t *testing.T) {
	tests := []struct {
		name  string
		cmd   EnrollCommand
		setup func(f *fixture)
		check func(t *testing.T, err error)
	}{
		{
			name:  "invalid email",
			cmd:   EnrollCommand{StudentEmail: "not-an-email", CourseID: testCourse},
			check: func(t *testing.T, err error) { assert.True(t, shared.IsValidation(err)) },
		},
		{
			name:  "unknown student",
			cmd:   EnrollCommand{StudentEmail: "b@x.com", CourseID: testCourse},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, shared.ErrStudentNotFound) },
		},
		{
			name:  "unknown course",
			cmd:   EnrollCommand{StudentEmail: testEmail, CourseID: "course-9"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, shared.ErrCourseNotFound) },
		},
		{
			name:  "enrollment store down",
			cmd:   EnrollCommand{StudentEmail: testEmail, CourseID: testCourse},
			setup: func(f *fixture) { f.enrollments.SetHook(enrollmentDown("")) },
			check: func(t *testing.T, err error) { assert.True(t, shared.IsStoreUnavailable(err)) },
		},
		{
			name: "student store down",
			cmd:  EnrollCommand{StudentEmail: testEmail, CourseID: testCourse},
			setup: func(f *fixture) {
				f.students.SetHook(func(context.Context, string) error {
					return shared.StoreUnavailable(shared.DomainStudentStore, "Exists", errors.New("dial tcp: refused"))
				})
			},
			check: func(t *testing.T, err error) { assert.True(t, shared.IsStoreUnavailable(err)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.enroll().Handle(context.Background(), tt.cmd)
			require.Error(t, err)
			tt.check(t, err)
			assert.Zero(t, f.enrollments.Count())
		})
	}
}

func TestEnroll_InvalidatesDashboardCache(t *testing.T) {
	f := newFixture(t)
	primeCache(t, f.cache)

	_, err := f.enroll().Handle(context.Background(), EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	require.NoError(t, err)
	assert.False(t, f.cache.Has(testEmail))
}

func TestEnroll_CacheFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.cache.SetHook(func(context.Context, string) error { return errors.New("redis: connection reset") })

	_, err := f.enroll().Handle(context.Background(), EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	assert.NoError(t, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordProgress_IdempotentAndPropagated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.enroll().Handle(ctx, EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	require.NoError(t, err)

	score := 90
	cmd := RecordProgressCommand{StudentEmail: testEmail, CourseID: testCourse, ModuleID: "mod-1", Completed: true, QuizScore: &score}

	first, err := f.recordProgress().Handle(ctx, cmd)
	require.NoError(t, err)
	second, err := f.recordProgress().Handle(ctx, cmd)
	require.NoError(t, err)

	entries, err := f.students.ListProgress(ctx, testEmail, testCourse)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 90, *entries[0].QuizScore)
	assert.Equal(t, first.Entry.CompletedAt, second.Entry.CompletedAt)
	assert.Empty(t, second.Warnings)

	e, err := f.enrollments.GetEnrollment(ctx, testEmail, testCourse)
	require.NoError(t, err)
	assert.Equal(t, 25.0, e.ProgressPercent)
	assert.False(t, e.Completed)
}

func TestRecordProgress_CompletesCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.enroll().Handle(ctx, EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	require.NoError(t, err)

	h := f.recordProgress()
	for _, m := range []string{"mod-1", "mod-2", "mod-3", "mod-4"} {
		_, err := h.Handle(ctx, RecordProgressCommand{StudentEmail: testEmail, CourseID: testCourse, ModuleID: m, Completed: true})
		require.NoError(t, err)
	}

	e, err := f.enrollments.GetEnrollment(ctx, testEmail, testCourse)
	require.NoError(t, err)
	assert.Equal(t, 100.0, e.ProgressPercent)
	assert.True(t, e.Completed)
}

func TestRecordProgress_WithoutEnrollmentSkipsPropagation(t *testing.T) {
	f := newFixture(t)

	res, err := f.recordProgress().Handle(context.Background(),
		RecordProgressCommand{StudentEmail: testEmail, CourseID: testCourse, ModuleID: "mod-1", Completed: true})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Nil(t, res.Progress)
	assert.Empty(t, f.ledger.All())
}

func TestRecordProgress_Validation(t *testing.T) {
	f := newFixture(t)
	bad := 101

	_, err := f.recordProgress().Handle(context.Background(),
		RecordProgressCommand{StudentEmail: testEmail, CourseID: testCourse, ModuleID: "mod-1", QuizScore: &bad})
	assert.ErrorIs(t, err, shared.ErrInvalidQuizScore)

	_, err = f.recordProgress().Handle(context.Background(),
		RecordProgressCommand{StudentEmail: testEmail, CourseID: "", ModuleID: "mod-1"})
	assert.True(t, shared.IsValidation(err))
}

func TestRecordProgress_StudentStoreFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.students.SetHook(func(_ context.Context, op string) error {
		if op == "UpsertProgress" {
			return shared.StoreUnavailable(shared.DomainStudentStore, op, errors.New("timeout"))
		}
		return nil
	})

	_, err := f.recordProgress().Handle(context.Background(),
		RecordProgressCommand{StudentEmail: testEmail, CourseID: testCourse, ModuleID: "mod-1", Completed: true})
	assert.True(t, shared.IsStoreUnavailable(err))
	assert.Empty(t, f.ledger.All())
}

func TestRecordProgress_UnknownStudent(t *testing.T) {
	f := newFixture(t)

	_, err := f.recordProgress().Handle(context.Background(),
		RecordProgressCommand{StudentEmail: "ghost@x.com", CourseID: testCourse, ModuleID: "mod-1"})
	assert.True(t, shared.IsNotFound(err))
}

func TestRecordProgress_PropagationFailureIsRecordedThenRepaired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.enroll().Handle(ctx, EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	require.NoError(t, err)
	primeCache(t, f.cache)

	f.enrollments.SetHook(enrollmentDown("UpdateProgress"))

	res, err := f.recordProgress().Handle(ctx,
		RecordProgressCommand{StudentEmail: testEmail, CourseID: testCourse, ModuleID: "mod-1", Completed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{WarningReconciliationFailure}, res.Warnings)
	assert.NotNil(t, res.Entry)
	assert.False(t, f.cache.Has(testEmail), "cache is invalidated even when propagation fails")

	failures := f.ledger.All()
	require.Len(t, failures, 1)
	assert.Equal(t, shared.Email(testEmail), failures[0].StudentEmail)
	assert.Equal(t, shared.ModuleID("mod-1"), failures[0].ModuleID)
	assert.Nil(t, failures[0].ResolvedAt)

	e, err := f.enrollments.GetEnrollment(ctx, testEmail, testCourse)
	require.NoError(t, err)
	assert.Zero(t, e.ProgressPercent)

	// Store still down: the attempt is counted, the row stays pending.
	out, err := f.reconcile(5).Handle(ctx, ReconcileEnrollmentsCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 1, f.ledger.All()[0].Attempts)

	// Store back: the pass recomputes from the student store.
	f.enrollments.SetHook(nil)
	out, err = f.reconcile(5).Handle(ctx, ReconcileEnrollmentsCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Resolved)
	assert.NotNil(t, f.ledger.All()[0].ResolvedAt)

	e, err = f.enrollments.GetEnrollment(ctx, testEmail, testCourse)
	require.NoError(t, err)
	assert.Equal(t, 25.0, e.ProgressPercent)

	pending, err := f.ledger.ListPending(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRecordProgress_ExpiredRequestStillRecordsFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.enroll().Handle(context.Background(), EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	require.NoError(t, err)
	primeCache(t, f.cache)

	// The enrollment store is slow enough to use up the whole request budget.
	f.enrollments.SetHook(func(ctx context.Context, op string) error {
		if op == "UpdateProgress" {
			<-ctx.Done()
			return shared.StoreUnavailable(shared.DomainEnrollmentStore, op, ctx.Err())
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := f.recordProgress().Handle(ctx,
		RecordProgressCommand{StudentEmail: testEmail, CourseID: testCourse, ModuleID: "mod-1", Completed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{WarningReconciliationFailure}, res.Warnings)

	pending, err := f.ledger.ListPending(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, shared.ModuleID("mod-1"), pending[0].ModuleID)
	assert.False(t, f.cache.Has(testEmail))
}

func TestEnroll_InvalidatesAfterRequestCancelled(t *testing.T) {
	f := newFixture(t)
	primeCache(t, f.cache)

	// The client disconnects right after the enrollment is committed.
	ctx, cancel := context.WithCancel(context.Background())
	f.cache.SetHook(func(_ context.Context, op string) error {
		if op == "Invalidate" {
			cancel()
		}
		return nil
	})

	_, err := f.enroll().Handle(ctx, EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	require.NoError(t, err)
	assert.False(t, f.cache.Has(testEmail))
}

func TestRecordProgress_LedgerFailureStillWarns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.enroll().Handle(ctx, EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	require.NoError(t, err)

	f.enrollments.SetHook(enrollmentDown("UpdateProgress"))
	f.ledger.SetHook(func(context.Context, string) error {
		return shared.StoreUnavailable(shared.DomainStudentStore, "Record", errors.New("refused"))
	})

	res, err := f.recordProgress().Handle(ctx,
		RecordProgressCommand{StudentEmail: testEmail, CourseID: testCourse, ModuleID: "mod-1", Completed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{WarningReconciliationFailure}, res.Warnings)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE
// ══════════════════════════════════════════════════════════════════════════════

func TestReconcile_ExhaustedRowsStayPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.enroll().Handle(ctx, EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	require.NoError(t, err)

	f.enrollments.SetHook(enrollmentDown("UpdateProgress"))
	_, err = f.recordProgress().Handle(ctx,
		RecordProgressCommand{StudentEmail: testEmail, CourseID: testCourse, ModuleID: "mod-1", Completed: true})
	require.NoError(t, err)

	h := f.reconcile(2)
	for i := 0; i < 2; i++ {
		_, err := h.Handle(ctx, ReconcileEnrollmentsCommand{})
		require.NoError(t, err)
	}

	out, err := h.Handle(ctx, ReconcileEnrollmentsCommand{})
	require.NoError(t, err)
	assert.Zero(t, out.Processed)
	assert.Equal(t, 1, out.Exhausted)
	assert.Nil(t, f.ledger.All()[0].ResolvedAt)
}

func TestReconcile_EnrollmentRemovedResolvesRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.enroll().Handle(ctx, EnrollCommand{StudentEmail: testEmail, CourseID: testCourse})
	require.NoError(t, err)
	f.enrollments.SetHook(enrollmentDown("UpdateProgress"))
	_, err = f.recordProgress().Handle(ctx,
		RecordProgressCommand{StudentEmail: testEmail, CourseID: testCourse, ModuleID: "mod-1", Completed: true})
	require.NoError(t, err)

	// Enrollment vanished meanwhile: nothing to repair.
	f.enrollments.SetHook(func(_ context.Context, op string) error {
		if op == "GetEnrollment" {
			return shared.ErrEnrollmentNotFound
		}
		return nil
	})

	out, err := f.reconcile(5).Handle(ctx, ReconcileEnrollmentsCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Resolved)
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER
// ══════════════════════════════════════════════════════════════════════════════

func TestRegisterStudent(t *testing.T) {
	students := memory.NewStudentStore()
	h := NewRegisterStudentHandler(students, zap.NewNop(), bcrypt.MinCost)
	ctx := context.Background()

	s, err := h.Handle(ctx, RegisterStudentCommand{Email: " New@X.com ", DisplayName: "Linus", Cohort: "2026-spring", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, shared.Email("new@x.com"), s.Email)
	assert.Equal(t, student.StatusActive, s.Status)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(s.PasswordHash), []byte("correct-horse")))

	_, err = h.Handle(ctx, RegisterStudentCommand{Email: "new@x.com", DisplayName: "Other", Password: "correct-horse"})
	assert.True(t, shared.IsAlreadyExists(err))

	_, err = h.Handle(ctx, RegisterStudentCommand{Email: "short@x.com", DisplayName: "Short", Password: "123"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, RegisterStudentCommand{Email: "blank@x.com", DisplayName: "   ", Password: "correct-horse"})
	assert.True(t, shared.IsValidation(err))
}
