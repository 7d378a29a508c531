package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestNoOpRateLimiter_AlwaysAllows(t *testing.T) {
	limiter := &NoOpRateLimiter{}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(ctx, "any-key")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	assert.NoError(t, limiter.Close())
}

func TestNewRedisRateLimiter_Disabled(t *testing.T) {
	limiter, err := NewRedisRateLimiter("", 100, time.Minute, true)
	require.NoError(t, err)
	defer limiter.Close()

	allowed, err := limiter.Allow(context.Background(), "backend")
	require.NoError(t, err)
	assert.True(t, allowed, "disabled limiter must allow everything")
}

func TestNewRedisRateLimiter_InvalidURL(t *testing.T) {
	_, err := NewRedisRateLimiter("not-a-valid-url", 100, time.Minute, false)
	assert.Error(t, err)
}

func TestRedisRateLimiter_EnforcesLimit(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewWithClient(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "backend")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d within limit", i+1)
	}

	allowed, err := limiter.Allow(ctx, "backend")
	require.NoError(t, err)
	assert.False(t, allowed, "request over limit must be denied")
}

func TestRedisRateLimiter_KeysAreIndependent(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewWithClient(client, 1, time.Minute)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "backend")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "backend")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "frontend")
	require.NoError(t, err)
	assert.True(t, allowed, "a saturated project must not throttle others")
}

func TestRedisRateLimiter_RedisDownReturnsError(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close() // simulate outage
	defer client.Close()

	limiter := NewWithClient(client, 3, time.Minute)
	_, err := limiter.Allow(context.Background(), "backend")
	assert.Error(t, err)
}
