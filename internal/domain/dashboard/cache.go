package dashboard

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get when no summary is stored.
var ErrCacheMiss = errors.New("dashboard: cache miss")

// Generation is the invalidation counter observed by a Get. A Set carrying
// an older generation than the current one is dropped, so a summary computed
// before a write can never be stored after that write's invalidation.
type Generation int64

// Cache accelerates summary reads. Correctness must hold with any
// implementation, including one that always misses.
type Cache interface {
	// Get returns the summary or ErrCacheMiss, plus the current generation.
	Get(ctx context.Context, email string) (*Summary, Generation, error)

	// Set stores the summary if gen is still current.
	Set(ctx context.Context, email string, gen Generation, s *Summary, ttl time.Duration) error

	// Invalidate drops the summary and advances the generation.
	Invalidate(ctx context.Context, email string) error
}

// NoopCache is used when no cache is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*Summary, Generation, error) {
	return nil, 0, ErrCacheMiss
}

func (NoopCache) Set(context.Context, string, Generation, *Summary, time.Duration) error {
	return nil
}

func (NoopCache) Invalidate(context.Context, string) error { return nil }

// Key returns the cache key of a student's summary.
func Key(email string) string {
	return "dashboard:" + email
}

// GenerationKey returns the key holding the summary's generation counter.
func GenerationKey(email string) string {
	return Key(email) + ":gen"
}
