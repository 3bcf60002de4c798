// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package repository

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultRetryWindow is how long a fetch attempt blocks the next one.
const DefaultRetryWindow = 24 * time.Hour

// RetrievalCache is the negative cache of fetch attempts. A key attempted
// less than the retry window ago is not attempted again. It is shared by
// all verifications and safe for concurrent use.
type RetrievalCache struct {
	mu       sync.Mutex
	attempts map[string]time.Time
	window   time.Duration
	clock    clockwork.Clock
}

// NewRetrievalCache returns an empty cache. A non-positive window means
// DefaultRetryWindow and a nil clock the real clock.
func NewRetrievalCache(window time.Duration, clock clockwork.Clock) *RetrievalCache {
	if window <= 0 {
		window = DefaultRetryWindow
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RetrievalCache{attempts: make(map[string]time.Time), window: window, clock: clock}
}

// TryAcquire records an attempt for key and reports true, unless key was
// attempted within the window, in which case nothing changes and it reports
// false. Check and record happen atomically.
func (c *RetrievalCache) TryAcquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if last, ok := c.attempts[key]; ok {
		if now.Sub(last) < c.window {
			return false
		}
	}
	c.attempts[key] = now
	return true
}

// Record marks key as attempted now.
func (c *RetrievalCache) Record(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[key] = c.clock.Now()
}

// Blocked reports whether key was attempted within the window.
func (c *RetrievalCache) Blocked(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.attempts[key]
	if !ok {
		return false
	}
	if c.clock.Now().Sub(last) >= c.window {
		delete(c.attempts, key)
		return false
	}
	return true
}

// Forget removes key so the next attempt goes through.
func (c *RetrievalCache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, key)
}

// Prune drops stale attempts and returns how many were dropped.
func (c *RetrievalCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	n := 0
	for k, last := range c.attempts {
		if now.Sub(last) >= c.window {
			delete(c.attempts, k)
			n++
		}
	}
	return n
}

// Len returns the number of recorded attempts, stale ones included.
func (c *RetrievalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.attempts)
}
