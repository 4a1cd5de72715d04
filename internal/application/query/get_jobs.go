package query

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/domain/job"
	"github.com/eduhub/eduhub-dashboard/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET JOBS QUERY
// Lists postings from the external feed. The feed is best effort: any upstream
// failure yields an empty list, never an error.
// ══════════════════════════════════════════════════════════════════════════════

// JobsCache stores the last good feed pull.
type JobsCache interface {
	Get(ctx context.Context) ([]job.Posting, bool, error)
	Set(ctx context.Context, postings []job.Posting, ttl time.Duration) error
}

type noopJobsCache struct{}

func (noopJobsCache) Get(context.Context) ([]job.Posting, bool, error)         { return nil, false, nil }
func (noopJobsCache) Set(context.Context, []job.Posting, time.Duration) error { return nil }

// GetJobsHandler serves GET /jobs and the refresh_job_feed job.
type GetJobsHandler struct {
	feed   job.Feed
	cache  JobsCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewGetJobsHandler creates a new GetJobsHandler. A nil cache disables caching.
func NewGetJobsHandler(feed job.Feed, cache JobsCache, ttl time.Duration, log *zap.Logger) *GetJobsHandler {
	if feed == nil {
		feed = job.EmptyFeed{}
	}
	if cache == nil {
		cache = noopJobsCache{}
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GetJobsHandler{feed: feed, cache: cache, ttl: ttl, logger: log.Named("jobs")}
}

// Handle returns postings newest first. It never fails.
func (h *GetJobsHandler) Handle(ctx context.Context) []job.Posting {
	log := logger.FromContext(ctx, h.logger)

	cached, ok, err := h.cache.Get(ctx)
	if err != nil {
		log.Warn("jobs cache read failed", zap.Error(err))
	}
	if ok {
		job.SortByPostedAtDesc(cached)
		return cached
	}

	postings, err := h.pull(ctx)
	if err != nil {
		log.Warn("job feed unavailable, returning empty list", zap.Error(err))
		return []job.Posting{}
	}
	return postings
}

// Refresh pulls the feed and replaces the cached copy.
func (h *GetJobsHandler) Refresh(ctx context.Context) (int, error) {
	postings, err := h.pull(ctx)
	if err != nil {
		return 0, fmt.Errorf("refresh_job_feed: %w", err)
	}
	return len(postings), nil
}

func (h *GetJobsHandler) pull(ctx context.Context) ([]job.Posting, error) {
	postings, err := h.feed.List(ctx)
	if err != nil {
		return nil, err
	}
	if postings == nil {
		postings = []job.Posting{}
	}
	job.SortByPostedAtDesc(postings)

	if err := h.cache.Set(ctx, postings, h.ttl); err != nil {
		logger.FromContext(ctx, h.logger).Warn("jobs cache write failed", zap.Error(err))
	}
	return postings, nil
}
