// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package revocation

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// CRLCacheEntry represents a cached CRL with metadata
type CRLCacheEntry struct {
	Data       []byte    // Raw CRL data
	FetchedAt  time.Time // When this CRL was fetched
	NextUpdate time.Time // When this CRL expires (from CRL.NextUpdate)
	URL        string    // Source URL for debugging
}

// isFresh checks if the cached CRL is still usable at now.
func (entry *CRLCacheEntry) isFresh(now time.Time) bool {
	return entry.NextUpdate.After(now) && entry.FetchedAt.After(now.Add(-24*time.Hour))
}

// isExpired checks if the CRL has expired and should be cleaned up
func (entry *CRLCacheEntry) isExpired(now time.Time) bool {
	return entry.NextUpdate.Before(now.Add(-1 * time.Hour)) // 1 hour grace period
}

// CRLCacheConfig holds configuration for the CRL cache
type CRLCacheConfig struct {
	MaxSize         int           // Maximum number of CRLs to cache (0 = unlimited)
	CleanupInterval time.Duration // How often Run cleans up (default: 1 hour)
}

// CRLCacheMetrics tracks cache performance and usage
type CRLCacheMetrics struct {
	Size        int64 // Current number of cached CRLs
	Hits        int64 // Number of cache hits
	Misses      int64 // Number of cache misses
	Evictions   int64 // Number of LRU evictions
	Cleanups    int64 // Number of expired CRL cleanups
	TotalMemory int64 // Approximate memory usage in bytes
}

// DefaultCRLCacheConfig is used for zero fields of a CRLCacheConfig.
var DefaultCRLCacheConfig = CRLCacheConfig{
	MaxSize:         100,
	CleanupInterval: 1 * time.Hour,
}

// CRLCache is an LRU cache of raw CRLs keyed by URL. It is shared by all
// verifications and safe for concurrent use.
type CRLCache struct {
	mu      sync.Mutex
	entries map[string]*CRLCacheEntry
	order   []string // access order, least recently used first
	config  CRLCacheConfig
	clock   clockwork.Clock

	hits, misses, evictions, cleanups atomic.Int64
}

// NewCRLCache returns an empty cache. A nil clock means the real clock.
func NewCRLCache(config CRLCacheConfig, clock clockwork.Clock) *CRLCache {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCRLCacheConfig.CleanupInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CRLCache{
		entries: make(map[string]*CRLCacheEntry),
		config:  config,
		clock:   clock,
	}
}

// Config returns the cache configuration.
func (c *CRLCache) Config() CRLCacheConfig { return c.config }

// Get retrieves a fresh CRL and marks it most recently used.
func (c *CRLCache) Get(url string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[url]
	if !ok || !entry.isFresh(c.clock.Now()) {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	c.touch(url)
	return slices.Clone(entry.Data), true
}

// Set stores a CRL, evicting the least recently used entries when full.
func (c *CRLCache) Set(url string, data []byte, nextUpdate time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[url]; !exists {
		for c.config.MaxSize > 0 && len(c.entries) >= c.config.MaxSize && len(c.order) > 0 {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
			c.evictions.Add(1)
		}
	}

	c.entries[url] = &CRLCacheEntry{
		Data:       slices.Clone(data),
		FetchedAt:  c.clock.Now(),
		NextUpdate: nextUpdate,
		URL:        url,
	}
	c.touch(url)
}

// touch moves url to the most recently used position. Callers hold mu.
func (c *CRLCache) touch(url string) {
	if i := slices.Index(c.order, url); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
	c.order = append(c.order, url)
}

// Cleanup removes CRLs that expired beyond their NextUpdate and returns
// how many were removed.
func (c *CRLCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for url, entry := range c.entries {
		if !entry.isExpired(now) {
			continue
		}
		delete(c.entries, url)
		if i := slices.Index(c.order, url); i >= 0 {
			c.order = slices.Delete(c.order, i, i+1)
		}
		removed++
	}
	c.cleanups.Add(int64(removed))
	return removed
}

// Run calls Cleanup every CleanupInterval until ctx is done.
func (c *CRLCache) Run(ctx context.Context) {
	ticker := c.clock.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.Cleanup()
		}
	}
}

// Clear drops every entry and resets the metrics.
func (c *CRLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*CRLCacheEntry)
	c.order = nil
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.cleanups.Store(0)
}

// Metrics returns current cache metrics.
func (c *CRLCache) Metrics() CRLCacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totalMemory int64
	for _, entry := range c.entries {
		totalMemory += int64(len(entry.Data)) + int64(len(entry.URL)) + 24 // approximate overhead
	}

	return CRLCacheMetrics{
		Size:        int64(len(c.entries)),
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Cleanups:    c.cleanups.Load(),
		TotalMemory: totalMemory,
	}
}

// Stats returns a formatted string with cache statistics
func (c *CRLCache) Stats() string {
	m := c.Metrics()

	hitRate := float64(0)
	if total := m.Hits + m.Misses; total > 0 {
		hitRate = float64(m.Hits) / float64(total) * 100
	}

	return fmt.Sprintf("CRL Cache Statistics:\n"+
		"  Size: %d/%d entries\n"+
		"  Memory Usage: %.2f KB\n"+
		"  Hit Rate: %.1f%% (%d hits, %d misses)\n"+
		"  Evictions: %d\n"+
		"  Cleanups: %d\n"+
		"  Cleanup Interval: %v",
		m.Size, c.config.MaxSize,
		float64(m.TotalMemory)/1024,
		hitRate, m.Hits, m.Misses,
		m.Evictions,
		m.Cleanups,
		c.config.CleanupInterval)
}
