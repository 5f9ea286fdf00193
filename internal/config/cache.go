package config

import (
	"context"
	"sync"
	"time"

	"github.com/webwatch/monitor/internal/model"
)

// Loader fetches a fresh ScanConfig, typically model.Repository.LoadScanConfig.
type Loader func(ctx context.Context) (model.ScanConfig, error)

// Cache holds a ScanConfig behind a TTL so probes don't hit the Repository
// on every single check. It is always constructor-injected into callers
// rather than kept as a package-level variable, so tests and concurrent
// orchestrator runs never share hidden global state.
type Cache struct {
	mu      sync.RWMutex
	load    Loader
	ttl     time.Duration
	value   model.ScanConfig
	expires time.Time
	loaded  bool
}

// NewCache builds a Cache with the given TTL (model.ScanConfigCacheTTL in
// production) and loader function.
func NewCache(load Loader, ttl time.Duration) *Cache {
	return &Cache{load: load, ttl: ttl}
}

// Get returns the cached ScanConfig, refreshing it via Loader if expired or
// never loaded.
func (c *Cache) Get(ctx context.Context) (model.ScanConfig, error) {
	c.mu.RLock()
	if c.loaded && time.Now().Before(c.expires) {
		v := c.value
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check: another goroutine may have refreshed while we waited for the lock.
	if c.loaded && time.Now().Before(c.expires) {
		return c.value, nil
	}
	v, err := c.load(ctx)
	if err != nil {
		if c.loaded {
			// Serve stale data rather than fail the probe outright.
			return c.value, nil
		}
		return model.ScanConfig{}, err
	}
	c.value = v
	c.expires = time.Now().Add(c.ttl)
	c.loaded = true
	return c.value, nil
}

// Invalidate forces the next Get to reload regardless of TTL.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
}
