// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package revocation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLRUAccessOrder tests that LRU access order is properly maintained
func TestLRUAccessOrder(t *testing.T) {
	tests := []struct {
		name           string
		accessSequence []string // URLs in access order
		expectLRUOrder []string // Expected LRU order (least to most recent)
	}{
		{
			name:           "Single access",
			accessSequence: []string{"url1"},
			expectLRUOrder: []string{"url1"},
		},
		{
			name:           "Sequential access",
			accessSequence: []string{"url1", "url2", "url3"},
			expectLRUOrder: []string{"url1", "url2", "url3"},
		},
		{
			name:           "Re-access moves to end",
			accessSequence: []string{"url1", "url2", "url3", "url1", "url2"},
			expectLRUOrder: []string{"url3", "url1", "url2"},
		},
		{
			name:           "Multiple re-access",
			accessSequence: []string{"a", "b", "c", "d", "b", "a", "c", "e"},
			expectLRUOrder: []string{"d", "b", "a", "c", "e"},
		},
		{
			name:           "Same URL repeated",
			accessSequence: []string{"url1", "url1", "url1", "url1"},
			expectLRUOrder: []string{"url1"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			clock := clockwork.NewFakeClock()
			cache := NewCRLCache(CRLCacheConfig{MaxSize: len(test.expectLRUOrder)}, clock)

			for _, url := range test.accessSequence {
				if _, found := cache.Get(url); !found {
					cache.Set(url, []byte("crl-"+url), clock.Now().Add(24*time.Hour))
				}
			}

			cache.mu.Lock()
			order := append([]string(nil), cache.order...)
			cache.mu.Unlock()
			assert.Equal(t, test.expectLRUOrder, order)
		})
	}
}

func TestLRUEviction(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewCRLCache(CRLCacheConfig{MaxSize: 2}, clock)
	next := clock.Now().Add(24 * time.Hour)

	cache.Set("a", []byte("a"), next)
	cache.Set("b", []byte("b"), next)
	_, found := cache.Get("a")
	require.True(t, found)

	cache.Set("c", []byte("c"), next)

	_, found = cache.Get("b")
	assert.False(t, found, "b was least recently used")
	_, found = cache.Get("a")
	assert.True(t, found)
	_, found = cache.Get("c")
	assert.True(t, found)

	m := cache.Metrics()
	assert.Equal(t, int64(2), m.Size)
	assert.Equal(t, int64(1), m.Evictions)
	assert.Equal(t, int64(3), m.Hits)
	assert.Equal(t, int64(1), m.Misses)
	assert.Positive(t, m.TotalMemory)
	assert.Contains(t, cache.Stats(), "Size: 2/2 entries")
}

func TestCacheFreshnessAndCleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewCRLCache(CRLCacheConfig{}, clock)
	assert.Equal(t, DefaultCRLCacheConfig.CleanupInterval, cache.Config().CleanupInterval)

	cache.Set("short", []byte("s"), clock.Now().Add(30*time.Minute))
	cache.Set("long", []byte("l"), clock.Now().Add(72*time.Hour))

	clock.Advance(time.Hour)
	_, found := cache.Get("short")
	assert.False(t, found, "past NextUpdate")
	assert.Zero(t, cache.Cleanup(), "still inside the grace period")

	clock.Advance(time.Hour)
	assert.Equal(t, 1, cache.Cleanup())

	_, found = cache.Get("long")
	assert.True(t, found)

	clock.Advance(25 * time.Hour)
	_, found = cache.Get("long")
	assert.False(t, found, "fetched more than a day ago")

	cache.Clear()
	assert.Equal(t, CRLCacheMetrics{}, cache.Metrics())
}

func TestCacheReturnsCopies(t *testing.T) {
	cache := NewCRLCache(CRLCacheConfig{MaxSize: 1}, nil)
	data := []byte("original")
	cache.Set("u", data, time.Now().Add(time.Hour))
	data[0] = 'X'

	got, found := cache.Get("u")
	require.True(t, found)
	assert.Equal(t, "original", string(got))
	got[0] = 'Y'

	again, _ := cache.Get("u")
	assert.Equal(t, "original", string(again))
}

func TestCacheRun(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewCRLCache(CRLCacheConfig{CleanupInterval: time.Minute}, clock)
	cache.Set("old", []byte("o"), clock.Now().Add(-2*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.Run(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return cache.Metrics().Cleanups == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewCRLCache(CRLCacheConfig{MaxSize: 8}, nil)
	next := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				url := fmt.Sprintf("http://crl/%d", (g+i)%12)
				if _, ok := cache.Get(url); !ok {
					cache.Set(url, []byte(url), next)
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Metrics().Size, int64(8))
}
