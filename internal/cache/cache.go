// Package cache provides the keyed analysis cache sitting between the
// pipeline engines and the AI collaborator. A key combines the analysis
// subject, the fingerprint of its inputs, and the analysis kind, so a
// changed input naturally misses and triggers recomputation while the
// superseded entry stays behind for audit.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/observability"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
)

// ComputeFunc performs the upstream AI call on a cache miss.
type ComputeFunc func(ctx context.Context) (json.RawMessage, error)

type Cache struct {
	store   repository.AnalysisCacheStore
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
	group   singleflight.Group
}

func New(store repository.AnalysisCacheStore, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
	}
}

// GetOrCompute returns the live cached value for key, or runs compute and
// stores its result. Concurrent callers with the same key share one
// in-flight computation; waiters whose own context is cancelled stop
// waiting, and if the computing caller's context is cancelled every waiter
// receives that error.
func (c *Cache) GetOrCompute(ctx context.Context, key models.CacheKey, compute ComputeFunc) (json.RawMessage, error) {
	if entry, err := c.store.GetLiveCacheEntry(ctx, key, c.clock.Now()); err != nil {
		return nil, err
	} else if entry != nil {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return entry.Value, nil
	}
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(key.String(), func() (any, error) {
		// A sibling flight may have stored the value between our lookup
		// and joining the group.
		if entry, err := c.store.GetLiveCacheEntry(ctx, key, c.clock.Now()); err == nil && entry != nil {
			return entry.Value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		now := c.clock.Now()
		expires := now.Add(c.ttl)
		entry := &models.AnalysisCacheEntry{
			Key:         key,
			Value:       value,
			GeneratedAt: now,
			ExpiresAt:   &expires,
		}
		if err := c.store.AddCacheEntry(ctx, entry); err != nil {
			return nil, fmt.Errorf("error storing computed analysis: %w", err)
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		// The flight keeps running for the remaining waiters.
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	}
}
