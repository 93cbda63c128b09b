package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leblingo/internal/cache"
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/logger"

	"go.uber.org/zap"
)

// ErrAnonymousResultNotFound is returned when a cached result is not found.
var ErrAnonymousResultNotFound = errors.New("anonymous result not found in cache")

// AnonymousResultCacheService parks evaluation results for learners without
// an account so they can fetch them once by result ID.
type AnonymousResultCacheService interface {
	Put(ctx context.Context, resultID string, result *dto.EvaluationResponse) error
	Get(ctx context.Context, resultID string) (*dto.EvaluationResponse, error)
}

type anonymousResultCacheServiceImpl struct {
	cache domain.Cache
	ttl   time.Duration
}

// NewAnonymousResultCacheService creates a new instance of AnonymousResultCacheService.
func NewAnonymousResultCacheService(cache domain.Cache, ttl time.Duration) AnonymousResultCacheService {
	if cache == nil {
		logger.Get().Warn("AnonymousResultCacheService initialized with nil cache. Service will be no-op.")
		return &noopAnonymousResultCacheService{}
	}
	return &anonymousResultCacheServiceImpl{
		cache: cache,
		ttl:   ttl,
	}
}

// Put stores the evaluation result for an anonymous learner.
func (s *anonymousResultCacheServiceImpl) Put(ctx context.Context, resultID string, result *dto.EvaluationResponse) error {
	if result == nil {
		return domain.NewInvalidInputError("cannot cache nil result")
	}

	key := cache.ResultKey(resultID)
	dataBytes, err := json.Marshal(result)
	if err != nil {
		logger.Get().Error("Failed to marshal anonymous result for caching", zap.Error(err), zap.String("resultID", resultID))
		return domain.NewInternalError("failed to marshal result for caching", err)
	}

	if err := s.cache.Set(ctx, key, string(dataBytes), s.ttl); err != nil {
		logger.Get().Error("Failed to cache anonymous result", zap.Error(err), zap.String("key", key))
		return domain.NewInternalError(fmt.Sprintf("failed to set anonymous result to cache for key %s", key), err)
	}
	logger.Get().Debug("Successfully cached anonymous result", zap.String("key", key), zap.Duration("ttl", s.ttl))
	return nil
}

// Get retrieves a parked evaluation result by its result ID.
func (s *anonymousResultCacheServiceImpl) Get(ctx context.Context, resultID string) (*dto.EvaluationResponse, error) {
	key := cache.ResultKey(resultID)
	dataString, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Debug("Anonymous result cache miss", zap.String("key", key))
			return nil, ErrAnonymousResultNotFound
		}
		logger.Get().Error("Failed to get anonymous result from cache", zap.Error(err), zap.String("key", key))
		return nil, domain.NewInternalError(fmt.Sprintf("failed to get anonymous result from cache for key %s", key), err)
	}

	if dataString == "" {
		return nil, ErrAnonymousResultNotFound
	}

	var result dto.EvaluationResponse
	if err := json.Unmarshal([]byte(dataString), &result); err != nil {
		logger.Get().Error("Failed to unmarshal anonymous result from cache", zap.Error(err), zap.String("key", key))
		return nil, domain.NewInternalError(fmt.Sprintf("failed to unmarshal result from cache for key %s", key), err)
	}
	return &result, nil
}

// noopAnonymousResultCacheService is used when no cache is configured.
// Results are simply not retained.
type noopAnonymousResultCacheService struct{}

func (s *noopAnonymousResultCacheService) Put(ctx context.Context, resultID string, result *dto.EvaluationResponse) error {
	logger.Get().Debug("No-op AnonymousResultCacheService: Put called", zap.String("resultID", resultID))
	return nil
}

func (s *noopAnonymousResultCacheService) Get(ctx context.Context, resultID string) (*dto.EvaluationResponse, error) {
	logger.Get().Debug("No-op AnonymousResultCacheService: Get called", zap.String("resultID", resultID))
	return nil, ErrAnonymousResultNotFound
}
