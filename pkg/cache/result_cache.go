// Package cache provides the content-addressed result cache shared by all
// generation workers of a run.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCapacity is used when no capacity is configured.
const DefaultCapacity = 1024

// Entry is one cached back-end result.
type Entry struct {
	Fingerprint string
	Payload     string
	CreatedAt   time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Shared    int64 `json:"shared"` // callers that waited on another caller's in-flight computation
	Evictions int64 `json:"evictions"`
	Len       int   `json:"len"`
}

// ComputeFunc produces the payload for a fingerprint on a cache miss.
type ComputeFunc func(ctx context.Context) (string, error)

// ResultCache maps fingerprints to back-end results with bounded LRU
// eviction. Concurrent requests for the same fingerprint share one
// computation. Results are handed to waiters directly from the computation,
// so eviction can never drop a result that someone is waiting on.
//
// All methods are safe for concurrent use.
type ResultCache struct {
	entries *lru.Cache[string, Entry]
	group   singleflight.Group
	logger  *zap.Logger
	now     func() time.Time

	// epoch advances on InvalidateAll; computations that started in an
	// older epoch are returned to their callers but not stored.
	epoch atomic.Uint64

	hits      atomic.Int64
	misses    atomic.Int64
	shared    atomic.Int64
	evictions atomic.Int64

	mu sync.Mutex // serializes store-vs-invalidate
}

// NewResultCache creates a cache holding at most capacity entries.
// A capacity of zero or less uses DefaultCapacity.
func NewResultCache(capacity int, logger *zap.Logger) (*ResultCache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &ResultCache{
		logger: logger.Named("cache"),
		now:    time.Now,
	}
	entries, err := lru.NewWithEvict(capacity, func(key string, _ Entry) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Get returns the cached entry for fingerprint and records a hit or miss.
func (c *ResultCache) Get(fingerprint string) (Entry, bool) {
	e, ok := c.entries.Get(fingerprint)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

// Put stores payload under fingerprint, replacing any previous entry.
func (c *ResultCache) Put(fingerprint, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(fingerprint, Entry{Fingerprint: fingerprint, Payload: payload, CreatedAt: c.now()})
}

// Delete removes one entry.
func (c *ResultCache) Delete(fingerprint string) {
	c.entries.Remove(fingerprint)
}

// InvalidateAll drops every entry. Computations already in flight still
// deliver their result to their callers, but do not repopulate the cache.
func (c *ResultCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.entries.Len()
	c.epoch.Add(1)
	c.entries.Purge()
	c.logger.Debug("Cache invalidated", zap.Int("dropped", n))
}

// Len returns the number of resident entries.
func (c *ResultCache) Len() int {
	return c.entries.Len()
}

// Stats returns a snapshot of the counters.
func (c *ResultCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Shared:    c.shared.Load(),
		Evictions: c.evictions.Load(),
		Len:       c.entries.Len(),
	}
}

// GetOrCompute returns the cached payload for fingerprint, or runs compute
// and caches its result. At most one compute runs per fingerprint at a time;
// concurrent callers wait for it and count as hits. Errors are returned to
// every waiter and never cached.
//
// hit is true when this caller did not trigger a back-end call.
func (c *ResultCache) GetOrCompute(ctx context.Context, fingerprint string, compute ComputeFunc) (payload string, hit bool, err error) {
	if e, ok := c.entries.Get(fingerprint); ok {
		c.hits.Add(1)
		return e.Payload, true, nil
	}

	var executed, fromCache bool
	ch := c.group.DoChan(fingerprint, func() (any, error) {
		executed = true
		// another flight may have stored it between our lookup and this flight
		if e, ok := c.entries.Get(fingerprint); ok {
			fromCache = true
			return e.Payload, nil
		}

		epoch := c.epoch.Load()
		c.misses.Add(1)
		out, err := compute(ctx)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		if c.epoch.Load() == epoch {
			c.entries.Add(fingerprint, Entry{Fingerprint: fingerprint, Payload: out, CreatedAt: c.now()})
		}
		c.mu.Unlock()
		return out, nil
	})

	select {
	case res := <-ch:
		hit = !executed || fromCache
		if !executed {
			c.shared.Add(1)
		}
		if res.Err != nil {
			return "", false, res.Err
		}
		if hit {
			c.hits.Add(1)
		}
		return res.Val.(string), hit, nil
	case <-ctx.Done():
		return "", false, context.Cause(ctx)
	}
}
