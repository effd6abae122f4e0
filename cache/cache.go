package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/prodrank/models"
)

// entry holds a cached value with its creation timestamp.
type entry[V any] struct {
	value     V
	createdAt time.Time
}

// Cache is a bounded in-memory cache. It is safe for concurrent use.
type Cache[V any] struct {
	mu         sync.RWMutex
	store      map[string]*entry[V]
	maxEntries int
	ttl        time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Cache holding at most maxEntries values. Entries older
// than ttl are treated as absent; ttl <= 0 keeps them until evicted.
func New[V any](maxEntries int, ttl time.Duration) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cache[V]{
		store:      make(map[string]*entry[V]),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Key hashes parts into a cache key.
func Key(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte("|"))
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached value and whether it was a hit.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.expired(e, time.Now()) {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// GetWithin is Get restricted to entries younger than maxAge. A
// non-positive maxAge never hits.
func (c *Cache[V]) GetWithin(key string, maxAge time.Duration) (V, bool) {
	var zero V
	if maxAge <= 0 {
		return zero, false
	}
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	now := time.Now()
	if !ok || c.expired(e, now) || now.Sub(e.createdAt) > maxAge {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set stores a value. At capacity, expired entries are dropped first,
// then one random entry.
func (c *Cache[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.store[key]; !ok && len(c.store) >= c.maxEntries {
		now := time.Now()
		for k, e := range c.store {
			if c.expired(e, now) {
				delete(c.store, k)
			}
		}
		// Map iteration order is random in Go.
		for k := range c.store {
			if len(c.store) < c.maxEntries {
				break
			}
			delete(c.store, k)
		}
	}

	c.store[key] = &entry[V]{value: v, createdAt: time.Now()}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stats returns the hit and miss counters.
func (c *Cache[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache[V]) expired(e *entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.createdAt) > c.ttl
}

// CoefficientKey identifies a coefficient vector of feature f.
func CoefficientKey(f models.Feature, coeffs models.Coefficients) string {
	return Key(string(f), coeffs.String())
}

// MemoizeCost wraps a cost function so that repeated vectors are scored
// once. Errors are not cached.
func MemoizeCost(c *Cache[float64], f models.Feature, cost func(context.Context, models.Coefficients) (float64, error)) func(context.Context, models.Coefficients) (float64, error) {
	return func(ctx context.Context, coeffs models.Coefficients) (float64, error) {
		key := CoefficientKey(f, coeffs)
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := cost(ctx, coeffs)
		if err != nil {
			return 0, err
		}
		c.Set(key, v)
		return v, nil
	}
}
