package auth

import (
	"sync"
	"time"

	"github.com/faultline-systems/faultline/internal/models"
)

// projectCache caches tenant lookups with an explicit TTL and an injected
// clock, so tests can advance time without sleeping.
type projectCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]projectCacheEntry
}

type projectCacheEntry struct {
	project   *models.Project
	expiresAt time.Time
}

func newProjectCache(ttl time.Duration, now func() time.Time) *projectCache {
	if now == nil {
		now = time.Now
	}
	return &projectCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]projectCacheEntry),
	}
}

func (c *projectCache) get(tenant string) *models.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[tenant]
	if !exists || c.now().After(entry.expiresAt) {
		return nil
	}
	return entry.project
}

func (c *projectCache) set(tenant string, p *models.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[tenant] = projectCacheEntry{
		project:   p,
		expiresAt: c.now().Add(c.ttl),
	}

	// Opportunistic cleanup keeps the map from accumulating dead tenants.
	for k, e := range c.entries {
		if c.now().After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
