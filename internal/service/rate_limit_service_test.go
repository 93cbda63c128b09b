package service

import (
	"context"
	"errors"
	"testing"

	"leblingo/internal/config"
	"leblingo/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitConfig(limit int) *config.Config {
	return &config.Config{
		RateLimit: config.RateLimitConfig{Enabled: true, DailyLimit: limit},
	}
}

func TestRateLimitAllowWithinQuota(t *testing.T) {
	svc := NewRateLimitService(newMemoryCache(), rateLimitConfig(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.NoError(t, svc.Allow(ctx, "user1"))
	}
}

func TestRateLimitBlocksOverQuota(t *testing.T) {
	svc := NewRateLimitService(newMemoryCache(), rateLimitConfig(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Allow(ctx, "user1"))
	}

	err := svc.Allow(ctx, "user1")
	require.Error(t, err)
	domainErr, ok := err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, domain.CodeRateLimited, domainErr.Code)

	retry, ok := domainErr.Context["retry_after_seconds"].(int)
	require.True(t, ok)
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 24*60*60+1)
}

func TestRateLimitQuotasArePerUser(t *testing.T) {
	svc := NewRateLimitService(newMemoryCache(), rateLimitConfig(1))
	ctx := context.Background()

	require.NoError(t, svc.Allow(ctx, "user1"))
	require.Error(t, svc.Allow(ctx, "user1"))
	assert.NoError(t, svc.Allow(ctx, "user2"))
}

func TestRateLimitFailsOpen(t *testing.T) {
	cacheImpl := newMemoryCache()
	cacheImpl.failZ = errors.New("redis down")
	svc := NewRateLimitService(cacheImpl, rateLimitConfig(1))
	ctx := context.Background()

	// Redis being down must never block requests.
	for i := 0; i < 5; i++ {
		assert.NoError(t, svc.Allow(ctx, "user1"))
	}
}

func TestRateLimitDisabled(t *testing.T) {
	cfg := rateLimitConfig(1)
	cfg.RateLimit.Enabled = false
	svc := NewRateLimitService(newMemoryCache(), cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.NoError(t, svc.Allow(ctx, "user1"))
	}
}

func TestRateLimitStatus(t *testing.T) {
	svc := NewRateLimitService(newMemoryCache(), rateLimitConfig(5))
	ctx := context.Background()

	status, err := svc.Status(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), status.Limit)
	assert.Equal(t, int64(0), status.CurrentUsage)
	assert.Equal(t, int64(5), status.Remaining)

	require.NoError(t, svc.Allow(ctx, "user1"))
	require.NoError(t, svc.Allow(ctx, "user1"))

	status, err = svc.Status(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.CurrentUsage)
	assert.Equal(t, int64(3), status.Remaining)
}
