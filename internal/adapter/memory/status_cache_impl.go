package memory

import (
	"context"
	"sync"
	"time"

	"github.com/user/site-auditor/internal/entity"
)

// sweepEvery is the number of writes between scans for expired entries.
const sweepEvery = 256

type cachedStatus struct {
	result  entity.ValidationResult
	expires time.Time
}

// StatusCacheImpl is a process-local StatusCache. Expired entries are
// dropped when read and swept periodically on write.
type StatusCacheImpl struct {
	mu      sync.RWMutex
	entries map[string]cachedStatus
	writes  int
	now     func() time.Time
}

// NewStatusCache creates an empty in-memory status cache.
func NewStatusCache() *StatusCacheImpl {
	return &StatusCacheImpl{entries: make(map[string]cachedStatus), now: time.Now}
}

// Get returns the cached result for url if it has not expired.
func (c *StatusCacheImpl) Get(_ context.Context, url string) (entity.ValidationResult, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[url]
	c.mu.RUnlock()
	if !ok {
		return entity.ValidationResult{}, false, nil
	}
	if now := c.now(); now.After(entry.expires) {
		c.mu.Lock()
		// Another writer may have refreshed it.
		if cur, ok := c.entries[url]; ok && now.After(cur.expires) {
			delete(c.entries, url)
		}
		c.mu.Unlock()
		return entity.ValidationResult{}, false, nil
	}
	return entry.result, true, nil
}

// Set stores result for ttl.
func (c *StatusCacheImpl) Set(_ context.Context, result entity.ValidationResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.entries[result.URL] = cachedStatus{result: result, expires: now.Add(ttl)}
	c.writes++
	if c.writes%sweepEvery == 0 {
		for url, entry := range c.entries {
			if now.After(entry.expires) {
				delete(c.entries, url)
			}
		}
	}
	return nil
}
