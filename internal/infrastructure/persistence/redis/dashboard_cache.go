package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eduhub/eduhub-dashboard/internal/domain/dashboard"
)

// DashboardCache implements dashboard.Cache.
//
// Each student has a value key and a generation counter. Invalidate deletes
// the value and increments the counter; Set writes only while the counter
// still equals the generation the caller read, checked under WATCH.
type DashboardCache struct {
	cache *Cache
}

// NewDashboardCache creates a new DashboardCache.
func NewDashboardCache(cache *Cache) *DashboardCache {
	return &DashboardCache{cache: cache}
}

// Get reads the summary and the generation in one round trip.
func (d *DashboardCache) Get(ctx context.Context, email string) (*dashboard.Summary, dashboard.Generation, error) {
	values, err := d.cache.client.MGet(ctx, dashboard.Key(email), dashboard.GenerationKey(email)).Result()
	if err != nil {
		return nil, 0, err
	}

	gen, err := parseGeneration(values[1])
	if err != nil {
		return nil, 0, err
	}

	raw, ok := values[0].(string)
	if !ok {
		return nil, gen, dashboard.ErrCacheMiss
	}

	var s dashboard.Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, gen, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	return &s, gen, nil
}

// Set stores the summary unless the generation moved since gen was read.
// A lost race is not an error: the write is simply dropped.
func (d *DashboardCache) Set(ctx context.Context, email string, gen dashboard.Generation, s *dashboard.Summary, ttl time.Duration) error {
	if s == nil {
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	genKey := dashboard.GenerationKey(email)
	err = d.cache.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		current, err := parseGeneration(raw)
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, dashboard.Key(email), data, ttl)
			return nil
		})
		return err
	}, genKey)

	if errors.Is(err, errStaleGeneration) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate drops the summary and advances the generation atomically.
func (d *DashboardCache) Invalidate(ctx context.Context, email string) error {
	_, err := d.cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, dashboard.Key(email))
		pipe.Incr(ctx, dashboard.GenerationKey(email))
		return nil
	})
	return err
}

var errStaleGeneration = errors.New("cache: stale generation")

func parseGeneration(v any) (dashboard.Generation, error) {
	var raw string
	switch t := v.(type) {
	case nil:
		return 0, nil
	case string:
		raw = t
	default:
		return 0, fmt.Errorf("%w: unexpected generation type %T", ErrCacheSerialization, v)
	}
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return dashboard.Generation(n), nil
}

var _ dashboard.Cache = (*DashboardCache)(nil)
