package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/portfolio-live-info/internal/models"
)

// Cache stores the latest weather reading per location key.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherReading, bool, error)
	Set(ctx context.Context, key string, value models.WeatherReading, ttl time.Duration) error
}

// InMemoryCache implements Cache with a mutex-guarded map. Expired entries are
// removed on access. Safe for the concurrent fetch goroutines the scheduler starts.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     models.WeatherReading
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

// Get returns (reading, true, nil) on a live hit and (zero, false, nil) on a
// miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.WeatherReading, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.WeatherReading{}, false, nil
	}

	if c.now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.WeatherReading{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores the reading until ttl elapses.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.WeatherReading, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}
