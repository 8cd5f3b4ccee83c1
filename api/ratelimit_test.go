package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 3, CleanupInterval: time.Minute})
	defer rl.Stop()

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
}

func TestRateLimiter_TracksAddressesIndependently(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 100, BurstSize: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	assert.True(t, rl.Allow("c"))
	assert.False(t, rl.Allow("c"))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.Allow("c"))
}

func TestRateLimiter_EmptyAddressFallsBackToUnknownBucket(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	assert.True(t, rl.Allow(""))
	assert.False(t, rl.Allow(""))
}

func TestRateLimiter_CleanupRemovesInactiveBuckets(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	rl.Allow("stale")
	rl.mu.Lock()
	rl.buckets["stale"].lastRefill = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.cleanup()

	rl.mu.RLock()
	_, ok := rl.buckets["stale"]
	rl.mu.RUnlock()
	assert.False(t, ok)
}
