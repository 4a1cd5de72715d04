// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/eduhub/eduhub-dashboard/internal/domain/dashboard"
	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
	"github.com/eduhub/eduhub-dashboard/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD SUMMARY QUERY
// Aggregates the student record with their enrollments. The enrollment store
// is optional for this read: when it is down the summary is marked partial.
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardSummaryQuery contains the query parameters.
type GetDashboardSummaryQuery struct {
	StudentEmail string
}

// GetDashboardSummaryConfig contains configuration for the handler.
type GetDashboardSummaryConfig struct {
	// CacheTTL bounds how long a summary is served from cache.
	CacheTTL time.Duration

	// EnrollmentTimeout is the sub-budget of the enrollment read.
	EnrollmentTimeout time.Duration

	// ComputeTimeout bounds a shared computation. It is detached from the
	// caller that started it, so coalesced callers do not share its deadline.
	ComputeTimeout time.Duration
}

// DefaultGetDashboardSummaryConfig returns default configuration.
func DefaultGetDashboardSummaryConfig() GetDashboardSummaryConfig {
	return GetDashboardSummaryConfig{
		CacheTTL:          5 * time.Minute,
		EnrollmentTimeout: 2 * time.Second,
		ComputeTimeout:    5 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardSummaryHandler handles GetDashboardSummaryQuery.
type GetDashboardSummaryHandler struct {
	students    student.Repository
	enrollments enrollment.Repository
	cache       dashboard.Cache
	logger      *zap.Logger
	config      GetDashboardSummaryConfig

	inflight singleflight.Group
	now      func() time.Time
}

// NewGetDashboardSummaryHandler creates a new handler. A nil cache disables caching.
func NewGetDashboardSummaryHandler(
	students student.Repository,
	enrollments enrollment.Repository,
	cache dashboard.Cache,
	log *zap.Logger,
	config GetDashboardSummaryConfig,
) *GetDashboardSummaryHandler {
	defaults := DefaultGetDashboardSummaryConfig()
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.EnrollmentTimeout <= 0 {
		config.EnrollmentTimeout = defaults.EnrollmentTimeout
	}
	if config.ComputeTimeout <= 0 {
		config.ComputeTimeout = defaults.ComputeTimeout
	}
	if cache == nil {
		cache = dashboard.NoopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &GetDashboardSummaryHandler{
		students:    students,
		enrollments: enrollments,
		cache:       cache,
		logger:      log.Named("dashboard"),
		config:      config,
		now:         time.Now,
	}
}

// Handle returns the student's dashboard summary.
//
// Errors: shared.ErrInvalidInput for a malformed email, shared.ErrNotFound
// when the student does not exist, shared.ErrStoreUnavailable when the
// student store cannot be read. Enrollment store failures never surface.
func (h *GetDashboardSummaryHandler) Handle(ctx context.Context, q GetDashboardSummaryQuery) (*dashboard.Summary, error) {
	email, err := shared.NewEmail(q.StudentEmail)
	if err != nil {
		return nil, fmt.Errorf("get_dashboard_summary: %w", err)
	}
	log := logger.FromContext(ctx, h.logger).With(logger.StudentEmail(email.String()))

	cached, gen, err := h.cache.Get(ctx, email.String())
	switch {
	case err == nil:
		return cached, nil
	case errors.Is(err, dashboard.ErrCacheMiss):
	default:
		log.Warn("dashboard cache read failed", zap.Error(err))
	}
	cacheable := err == nil || errors.Is(err, dashboard.ErrCacheMiss)

	ch := h.inflight.DoChan(email.String(), func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.ComputeTimeout)
		defer cancel()
		return h.compute(cctx, email, gen, cacheable, log)
	})

	// A caller that gives up leaves the shared computation running for the others.
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get_dashboard_summary: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debug("dashboard computation coalesced")
		}
		return res.Val.(*dashboard.Summary), nil
	}
}

// Invalidate drops the cached summary and detaches any in-flight computation
// so that the next read starts from post-write state.
func (h *GetDashboardSummaryHandler) Invalidate(ctx context.Context, email string) error {
	h.inflight.Forget(email)
	return h.cache.Invalidate(ctx, email)
}

func (h *GetDashboardSummaryHandler) compute(
	ctx context.Context,
	email shared.Email,
	gen dashboard.Generation,
	cacheable bool,
	log *zap.Logger,
) (*dashboard.Summary, error) {
	var (
		stud        *student.Student
		studentErr  error
		enrollments []*enrollment.Enrollment
		enrollErr   error
	)

	// Branches record their own errors; one failing never cancels the other.
	var g errgroup.Group
	g.Go(func() error {
		stud, studentErr = h.students.GetByEmail(ctx, email)
		return nil
	})
	g.Go(func() error {
		ectx, cancel := context.WithTimeout(ctx, h.config.EnrollmentTimeout)
		defer cancel()
		enrollments, enrollErr = h.enrollments.ListByStudent(ectx, email)
		return nil
	})
	_ = g.Wait()

	if studentErr != nil {
		if !shared.IsNotFound(studentErr) {
			log.Error("student store read failed", zap.Error(studentErr))
		}
		return nil, fmt.Errorf("get_dashboard_summary: %w", studentErr)
	}

	partial := enrollErr != nil
	if partial {
		log.Warn("enrollment store read failed, serving partial summary",
			logger.Store(shared.DomainEnrollmentStore),
			zap.Error(enrollErr),
		)
		enrollments = nil
	}

	summary := dashboard.Build(stud, enrollments, partial, h.now())

	if !partial && cacheable {
		if err := h.cache.Set(ctx, email.String(), gen, summary, h.config.CacheTTL); err != nil {
			log.Warn("dashboard cache write failed", zap.Error(err))
		}
	}

	return summary, nil
}
