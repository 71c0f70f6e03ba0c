package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

// StaleGrace is how long an expired forecast stays readable through GetStale.
const StaleGrace = time.Hour

// Cache defines the interface for forecast caching implementations.
// Get returns cached data if present and not expired, Set stores data with TTL.
// GetStale also returns expired entries still within StaleGrace, for serving
// when the store is unavailable.
type Cache interface {
	Get(ctx context.Context, key string) (models.Forecast, bool, error)
	GetStale(ctx context.Context, key string) (models.Forecast, bool, error)
	Set(ctx context.Context, key string, value models.Forecast, ttl time.Duration) error
}

// Key returns the cache key for a region forecast over a horizon.
func Key(regionID string, days int) string {
	return regionID + ":" + strconv.Itoa(days)
}

// InMemoryCache implements Cache using a map guarded by a mutex.
// Entries past their stale deadline are removed on access.
type InMemoryCache struct {
	mu    sync.Mutex
	data  map[string]cacheEntry
	clock clockwork.Clock
}

type cacheEntry struct {
	value      models.Forecast
	expiresAt  time.Time
	staleUntil time.Time
}

// NewInMemoryCache creates a new in-memory cache. A nil clock uses the real clock.
func NewInMemoryCache(clock clockwork.Clock) *InMemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InMemoryCache{
		data:  make(map[string]cacheEntry),
		clock: clock,
	}
}

// Get returns (forecast, true, nil) on a fresh hit and (zero, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Forecast, bool, error) {
	entry, ok := c.lookup(key)
	if !ok || c.clock.Now().After(entry.expiresAt) {
		return models.Forecast{}, false, nil
	}
	return entry.value, true, nil
}

// GetStale returns the entry even if expired, as long as it is within StaleGrace.
func (c *InMemoryCache) GetStale(ctx context.Context, key string) (models.Forecast, bool, error) {
	entry, ok := c.lookup(key)
	if !ok {
		return models.Forecast{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores a forecast with the given TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.Forecast, ttl time.Duration) error {
	now := c.clock.Now()
	c.mu.Lock()
	c.data[key] = cacheEntry{
		value:      value,
		expiresAt:  now.Add(ttl),
		staleUntil: now.Add(ttl + StaleGrace),
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of retained entries, including stale ones.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *InMemoryCache) lookup(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return cacheEntry{}, false
	}
	if c.clock.Now().After(entry.staleUntil) {
		delete(c.data, key)
		return cacheEntry{}, false
	}
	return entry, true
}
