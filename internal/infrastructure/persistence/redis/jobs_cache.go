package redis

import (
	"context"
	"errors"
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/job"
)

// JobsFeedKey holds the last good feed pull.
const JobsFeedKey = PrefixJobs + "feed"

// JobsCache stores the last successful job feed pull.
type JobsCache struct {
	cache *Cache
}

// NewJobsCache creates a new JobsCache.
func NewJobsCache(cache *Cache) *JobsCache {
	return &JobsCache{cache: cache}
}

// Get returns the cached postings. The bool is false on a miss.
func (j *JobsCache) Get(ctx context.Context) ([]job.Posting, bool, error) {
	var postings []job.Posting
	err := j.cache.Get(ctx, JobsFeedKey, &postings)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if postings == nil {
		postings = []job.Posting{}
	}
	return postings, true, nil
}

// Set replaces the cached postings.
func (j *JobsCache) Set(ctx context.Context, postings []job.Posting, ttl time.Duration) error {
	if postings == nil {
		postings = []job.Posting{}
	}
	return j.cache.Set(ctx, JobsFeedKey, postings, ttl)
}
