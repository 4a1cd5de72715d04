package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/dashboard"
)

type cachedSummary struct {
	summary   dashboard.Summary
	expiresAt time.Time
}

// DashboardCache implements dashboard.Cache with the same generation guard
// as the Redis cache.
type DashboardCache struct {
	hooks

	mu     sync.Mutex
	values map[string]cachedSummary
	gens   map[string]dashboard.Generation
	now    func() time.Time
}

// NewDashboardCache creates an empty cache.
func NewDashboardCache() *DashboardCache {
	return &DashboardCache{
		values: make(map[string]cachedSummary),
		gens:   make(map[string]dashboard.Generation),
		now:    time.Now,
	}
}

func (c *DashboardCache) Get(ctx context.Context, email string) (*dashboard.Summary, dashboard.Generation, error) {
	if err := c.before(ctx, "Get"); err != nil {
		return nil, 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	gen := c.gens[email]
	v, ok := c.values[email]
	if !ok || (!v.expiresAt.IsZero() && c.now().After(v.expiresAt)) {
		return nil, gen, dashboard.ErrCacheMiss
	}
	s := v.summary
	return &s, gen, nil
}

func (c *DashboardCache) Set(ctx context.Context, email string, gen dashboard.Generation, s *dashboard.Summary, ttl time.Duration) error {
	if err := c.before(ctx, "Set"); err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[email] != gen {
		return nil
	}
	v := cachedSummary{summary: *s}
	if ttl > 0 {
		v.expiresAt = c.now().Add(ttl)
	}
	c.values[email] = v
	return nil
}

func (c *DashboardCache) Invalidate(ctx context.Context, email string) error {
	if err := c.before(ctx, "Invalidate"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.values, email)
	c.gens[email]++
	return nil
}

// Has reports whether a summary is stored for email.
func (c *DashboardCache) Has(email string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[email]
	return ok
}

var _ dashboard.Cache = (*DashboardCache)(nil)
