package service

import (
	"context"
	"strconv"
	"time"

	"leblingo/internal/cache"
	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/logger"
	"leblingo/internal/util"

	"go.uber.org/zap"
)

const rateLimitWindow = 24 * time.Hour

// RateLimitService guards the content generation endpoints with a per-user
// daily quota. Limiting must never take the API down, so Redis failures are
// logged and the request is allowed through.
type RateLimitService interface {
	// Allow records one request for the user and returns a RATE_LIMITED
	// domain error when the daily quota is exhausted.
	Allow(ctx context.Context, userID string) error
	// Status reports the user's current usage against the quota.
	Status(ctx context.Context, userID string) (*dto.RateLimitStatusResponse, error)
}

type rateLimitServiceImpl struct {
	cache domain.Cache
	cfg   *config.Config
}

// NewRateLimitService creates a new instance of RateLimitService.
func NewRateLimitService(cacheImpl domain.Cache, cfg *config.Config) RateLimitService {
	return &rateLimitServiceImpl{
		cache: cacheImpl,
		cfg:   cfg,
	}
}

func (s *rateLimitServiceImpl) limit() int64 {
	if s.cfg == nil || s.cfg.RateLimit.DailyLimit <= 0 {
		return 100
	}
	return int64(s.cfg.RateLimit.DailyLimit)
}

func (s *rateLimitServiceImpl) enabled() bool {
	return s.cfg != nil && s.cfg.RateLimit.Enabled && s.cache != nil
}

// Allow implements RateLimitService using a sliding window of request
// timestamps in a sorted set, one member per request.
func (s *rateLimitServiceImpl) Allow(ctx context.Context, userID string) error {
	if !s.enabled() {
		return nil
	}

	key := cache.RateLimitKey(userID)
	now := time.Now()

	count, err := s.pruneAndCount(ctx, key, now)
	if err != nil {
		logger.Get().Warn("Rate limiter unavailable, allowing request",
			zap.Error(err),
			zap.String("userID", userID))
		return nil
	}

	if count >= s.limit() {
		return domain.NewRateLimitedError(secondsUntilMidnightUTC(now))
	}

	if err := s.cache.ZAdd(ctx, key, float64(now.UnixMilli()), util.NewULID()); err != nil {
		logger.Get().Warn("Failed to record request in rate limit window",
			zap.Error(err),
			zap.String("userID", userID))
		return nil
	}
	if err := s.cache.Expire(ctx, key, rateLimitWindow+time.Hour); err != nil {
		logger.Get().Warn("Failed to set rate limit window expiry",
			zap.Error(err),
			zap.String("userID", userID))
	}

	return nil
}

// Status implements RateLimitService.
func (s *rateLimitServiceImpl) Status(ctx context.Context, userID string) (*dto.RateLimitStatusResponse, error) {
	limit := s.limit()
	status := &dto.RateLimitStatusResponse{Limit: limit, Remaining: limit}
	if !s.enabled() {
		return status, nil
	}

	count, err := s.pruneAndCount(ctx, cache.RateLimitKey(userID), time.Now())
	if err != nil {
		logger.Get().Warn("Rate limiter unavailable, reporting empty usage",
			zap.Error(err),
			zap.String("userID", userID))
		return status, nil
	}

	status.CurrentUsage = count
	status.Remaining = limit - count
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	return status, nil
}

// pruneAndCount drops window entries older than 24 hours and returns how
// many remain.
func (s *rateLimitServiceImpl) pruneAndCount(ctx context.Context, key string, now time.Time) (int64, error) {
	windowStart := now.Add(-rateLimitWindow).UnixMilli()
	if err := s.cache.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10)); err != nil {
		return 0, err
	}
	return s.cache.ZCard(ctx, key)
}

// secondsUntilMidnightUTC is the Retry-After value for a throttled request:
// quotas reset at midnight UTC.
func secondsUntilMidnightUTC(now time.Time) int {
	utc := now.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return int(midnight.Sub(utc).Seconds()) + 1
}
