package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/domain/job"
)

type stubFeed struct {
	postings []job.Posting
	err      error
	calls    int
}

func (f *stubFeed) List(context.Context) ([]job.Posting, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]job.Posting, len(f.postings))
	copy(out, f.postings)
	return out, nil
}

type stubJobsCache struct {
	mu       sync.Mutex
	postings []job.Posting
	ok       bool
	ttl      time.Duration
}

func (c *stubJobsCache) Get(context.Context) ([]job.Posting, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.postings, c.ok, nil
}

func (c *stubJobsCache) Set(_ context.Context, postings []job.Posting, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postings, c.ok, c.ttl = postings, true, ttl
	return nil
}

func postingsFixture() []job.Posting {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []job.Posting{
		{ID: "old", Title: "Intern", PostedAt: base},
		{ID: "new", Title: "Junior Go", PostedAt: base.Add(48 * time.Hour)},
		{ID: "mid", Title: "Backend", PostedAt: base.Add(24 * time.Hour)},
	}
}

func ids(postings []job.Posting) []string {
	out := make([]string, 0, len(postings))
	for _, p := range postings {
		out = append(out, p.ID)
	}
	return out
}

func TestGetJobs_SortsAndCaches(t *testing.T) {
	feed := &stubFeed{postings: postingsFixture()}
	cache := &stubJobsCache{}
	h := NewGetJobsHandler(feed, cache, time.Minute, zap.NewNop())

	got := h.Handle(context.Background())
	assert.Equal(t, []string{"new", "mid", "old"}, ids(got))
	assert.True(t, cache.ok)
	assert.Equal(t, time.Minute, cache.ttl)

	again := h.Handle(context.Background())
	assert.Equal(t, []string{"new", "mid", "old"}, ids(again))
	assert.Equal(t, 1, feed.calls)
}

func TestGetJobs_FeedFailureYieldsEmptyList(t *testing.T) {
	h := NewGetJobsHandler(&stubFeed{err: errors.New("upstream 502")}, nil, 0, zap.NewNop())

	got := h.Handle(context.Background())
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetJobs_NoFeedConfigured(t *testing.T) {
	h := NewGetJobsHandler(nil, nil, 0, nil)
	assert.Empty(t, h.Handle(context.Background()))
}

func TestGetJobs_Refresh(t *testing.T) {
	cache := &stubJobsCache{}
	h := NewGetJobsHandler(&stubFeed{postings: postingsFixture()}, cache, 0, zap.NewNop())

	n, err := h.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 10*time.Minute, cache.ttl)

	failing := NewGetJobsHandler(&stubFeed{err: errors.New("boom")}, cache, 0, zap.NewNop())
	_, err = failing.Refresh(context.Background())
	assert.Error(t, err)
	assert.Len(t, cache.postings, 3, "a failed refresh keeps the last good pull")
}
