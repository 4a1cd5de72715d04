package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/pkg/logger"
)

// FeedRefresher pulls the job feed into the cache.
type FeedRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// RefreshJobFeedJob keeps the jobs cache warm so GET /jobs rarely waits on
// the upstream feed.
type RefreshJobFeedJob struct {
	refresher FeedRefresher
	logger    *zap.Logger
}

// NewRefreshJobFeedJob creates the job.
func NewRefreshJobFeedJob(refresher FeedRefresher, log *zap.Logger) *RefreshJobFeedJob {
	if log == nil {
		log = zap.NewNop()
	}
	return &RefreshJobFeedJob{refresher: refresher, logger: log}
}

func (j *RefreshJobFeedJob) Name() string { return "refresh_job_feed" }

func (j *RefreshJobFeedJob) Description() string {
	return "Pulls job postings from the external feed into the cache"
}

// Run refreshes the feed. Upstream failures are returned so the scheduler
// counts them; the cached copy is left untouched.
func (j *RefreshJobFeedJob) Run(ctx context.Context) error {
	n, err := j.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.Name(), err)
	}
	logger.FromContext(ctx, j.logger).Debug("job feed refreshed", zap.Int("postings", n))
	return nil
}
