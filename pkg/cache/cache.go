// Package cache memoizes successful plan completions by request fingerprint.
//
// A ResultCache has a bounded in-memory tier with per-entry TTL and an
// optional persistent Store (SQLite or Redis) behind it. Concurrent callers
// asking for the same key share one computation. Only successful results
// are stored; empty and failed results are handed back to the caller and
// forgotten, so the next request for the key tries again.
package cache

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/pario-ai/wanderplan/pkg/models"
)

// Store is a persistent cache tier.
type Store interface {
	Get(ctx context.Context, fingerprint string) (string, bool, error)
	Put(ctx context.Context, fingerprint, text string) error
	Stats(ctx context.Context) (models.CacheStats, error)
	Clear(ctx context.Context, expiredOnly bool) error
}

// ComputeFunc produces a result on a cache miss.
type ComputeFunc func(ctx context.Context) models.CompletionResult

// ResultCache is safe for concurrent use. A nil *ResultCache computes every
// request without caching.
type ResultCache struct {
	mem        *gocache.Cache
	store      Store
	maxEntries int
	logger     *slog.Logger

	mu     sync.Mutex // serializes eviction with insertion
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithStore adds a persistent tier consulted on memory misses.
func WithStore(s Store) Option {
	return func(c *ResultCache) { c.store = s }
}

// WithLogger sets the logger used for store errors.
func WithLogger(l *slog.Logger) Option {
	return func(c *ResultCache) { c.logger = l }
}

// New returns a cache whose entries live for ttl (ttl <= 0 means no
// expiry) with at most maxEntries in memory (<= 0 means unbounded).
func New(ttl time.Duration, maxEntries int, opts ...Option) *ResultCache {
	expiration := ttl
	cleanup := ttl
	if ttl <= 0 {
		expiration = gocache.NoExpiration
		cleanup = 0
	}
	c := &ResultCache{
		mem:        gocache.New(expiration, cleanup),
		maxEntries: maxEntries,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type flightResult struct {
	result models.CompletionResult
	hit    bool
}

// GetOrCompute returns the cached result for key or runs compute. hit
// reports whether the result came from the cache or from another caller's
// in-flight computation rather than a call made on this caller's behalf.
//
// compute runs detached from ctx cancellation: a caller whose ctx ends
// stops waiting and gets a canceled Failure, while the computation
// finishes for the other waiters and the cache.
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (models.CompletionResult, bool) {
	if c == nil {
		return compute(ctx), false
	}

	if r, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return r, true
	}

	var led bool
	ch := c.group.DoChan(key, func() (any, error) {
		led = true
		if r, ok := c.lookup(key); ok {
			return flightResult{result: r, hit: true}, nil
		}

		fctx := context.WithoutCancel(ctx)
		if c.store != nil {
			text, ok, err := c.store.Get(fctx, key)
			if err != nil {
				c.logger.Warn("cache store get failed", "fingerprint", key, "error", err)
			}
			if ok {
				r := models.Success(text)
				c.set(key, r)
				return flightResult{result: r, hit: true}, nil
			}
		}

		r := compute(fctx)
		if r.IsSuccess() {
			c.set(key, r)
			if c.store != nil {
				if err := c.store.Put(fctx, key, r.Text); err != nil {
					c.logger.Warn("cache store put failed", "fingerprint", key, "error", err)
				}
			}
		}
		return flightResult{result: r}, nil
	})

	select {
	case <-ctx.Done():
		c.misses.Add(1)
		return models.Failure(models.ErrorCanceled, ctx.Err().Error()), false
	case res := <-ch:
		fr := res.Val.(flightResult)
		hit := fr.hit || (!led && fr.result.IsSuccess())
		if hit {
			c.hits.Add(1)
		} else {
			c.misses.Add(1)
		}
		return fr.result, hit
	}
}

func (c *ResultCache) lookup(key string) (models.CompletionResult, bool) {
	v, ok := c.mem.Get(key)
	if !ok {
		return models.CompletionResult{}, false
	}
	r, ok := v.(models.CompletionResult)
	return r, ok
}

func (c *ResultCache) set(key string, r models.CompletionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 {
		if _, exists := c.mem.Get(key); !exists {
			for c.mem.ItemCount() >= c.maxEntries {
				if !c.evictOne() {
					break
				}
			}
		}
	}
	c.mem.SetDefault(key, r)
}

// evictOne removes the entry closest to expiry.
func (c *ResultCache) evictOne() bool {
	items := c.mem.Items()
	if len(items) == 0 {
		// Only expired entries remain.
		c.mem.DeleteExpired()
		return c.mem.ItemCount() > 0
	}
	victim := ""
	soonest := int64(math.MaxInt64)
	for k, it := range items {
		if it.Expiration < soonest || (it.Expiration == soonest && k < victim) {
			victim, soonest = k, it.Expiration
		}
	}
	c.mem.Delete(victim)
	return true
}

// Stats reports hit/miss counters. Entries counts the persistent tier when
// one is configured, otherwise the memory tier.
func (c *ResultCache) Stats(ctx context.Context) (models.CacheStats, error) {
	if c == nil {
		return models.CacheStats{}, nil
	}
	stats := models.CacheStats{
		Entries: int64(c.mem.ItemCount()),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
	if c.store != nil {
		st, err := c.store.Stats(ctx)
		if err != nil {
			return stats, err
		}
		stats.Entries = st.Entries
	}
	return stats, nil
}

// Clear drops every memory entry and, if present, every persisted entry.
func (c *ResultCache) Clear(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mem.Flush()
	if c.store != nil {
		return c.store.Clear(ctx, false)
	}
	return nil
}
