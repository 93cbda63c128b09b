package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leblingo/internal/cache"
	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/logger"
	"leblingo/internal/util"
	"leblingo/internal/validation"

	"go.uber.org/zap"
)

// LessonService generates and serves bilingual lessons.
type LessonService interface {
	// GenerateStory produces a lesson for a topic and level, reusing an
	// existing lesson when the model regenerates identical english text.
	GenerateStory(ctx context.Context, req *dto.StoryRequest) (*dto.LessonResponse, error)

	// GetLesson retrieves a single lesson by ID.
	GetLesson(ctx context.Context, lessonID string) (*dto.LessonResponse, error)

	// ListLessons returns a filtered page of lessons.
	ListLessons(ctx context.Context, filters *dto.LessonFilters, page *dto.Pagination) (*dto.LessonListResponse, error)

	// ListTopics returns every topic that has at least one lesson.
	ListTopics(ctx context.Context) (*dto.TopicsResponse, error)
}

type lessonServiceImpl struct {
	lessonRepo domain.LessonRepository
	storyGen   domain.StoryGenerator
	cacheImpl  domain.Cache
	validator  *validation.Validator
	storyTTL   time.Duration
}

// NewLessonService creates a new instance of LessonService. cacheImpl may be
// nil; generation then always reaches the model.
func NewLessonService(
	lessonRepo domain.LessonRepository,
	storyGen domain.StoryGenerator,
	cacheImpl domain.Cache,
	cfg *config.Config,
) LessonService {
	return &lessonServiceImpl{
		lessonRepo: lessonRepo,
		storyGen:   storyGen,
		cacheImpl:  cacheImpl,
		validator:  validation.NewValidator(),
		storyTTL:   cfg.ParseTTLStringOrDefault(cfg.CacheTTLs.Story, 24*time.Hour),
	}
}

func (s *lessonServiceImpl) GenerateStory(ctx context.Context, req *dto.StoryRequest) (*dto.LessonResponse, error) {
	if errs := s.validator.ValidateStoryRequest(req.Topic, req.Level); len(errs) > 0 {
		return nil, domain.NewInvalidInputError(errs.Error())
	}
	level := domain.ParseLevel(req.Level)

	cacheKey := cache.StoryKey(req.Topic, string(level), req.Seed)
	if cached := s.cachedLesson(ctx, cacheKey); cached != nil {
		logger.Get().Debug("Story served from cache",
			zap.String("topic", req.Topic),
			zap.String("level", string(level)))
		return cached, nil
	}

	story, err := s.storyGen.GenerateStory(ctx, req.Topic, level, req.Seed)
	if err != nil {
		logger.Get().Error("Story generation failed",
			zap.Error(err),
			zap.String("topic", req.Topic))
		return nil, domain.NewLLMServiceError(err)
	}
	if !validation.IsValidTransliteration(story.LaText) {
		logger.Get().Warn("Generated story failed transliteration validation",
			zap.String("topic", req.Topic),
			zap.String("laText", story.LaText))
		return nil, domain.NewLLMServiceError(errors.New("generated text is not valid lebanese transliteration"))
	}

	lesson := domain.NewLesson(req.Topic, level, story.EnText, story.LaText, map[string]interface{}{
		"source": "ollama",
		"seed":   req.Seed,
	})
	lesson.ID = util.NewULID()
	if err := lesson.Validate(); err != nil {
		return nil, err
	}

	// CreateLesson swaps in the existing row on a (topic, english text)
	// collision, so regenerated duplicates converge on one lesson ID.
	if err := s.lessonRepo.CreateLesson(ctx, lesson); err != nil {
		return nil, domain.NewDatabaseError("failed to save lesson", err)
	}

	response := dto.NewLessonResponse(lesson)
	s.cacheLesson(ctx, cacheKey, response)

	logger.Get().Info("Lesson generated",
		zap.String("lessonID", lesson.ID),
		zap.String("topic", lesson.Topic),
		zap.String("level", string(lesson.Level)))
	return response, nil
}

func (s *lessonServiceImpl) GetLesson(ctx context.Context, lessonID string) (*dto.LessonResponse, error) {
	lesson, err := s.lessonRepo.GetLessonByID(ctx, lessonID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to load lesson", err)
	}
	if lesson == nil {
		return nil, domain.NewLessonNotFoundError(lessonID)
	}
	return dto.NewLessonResponse(lesson), nil
}

func (s *lessonServiceImpl) ListLessons(ctx context.Context, filters *dto.LessonFilters, page *dto.Pagination) (*dto.LessonListResponse, error) {
	if filters == nil {
		filters = &dto.LessonFilters{}
	}
	if page == nil {
		page = &dto.Pagination{}
	}
	page.Normalize()

	var level domain.Level
	if filters.Level != "" {
		if !domain.IsValidLevel(filters.Level) {
			return nil, domain.NewInvalidInputError("level must be beginner, intermediate or advanced")
		}
		level = domain.ParseLevel(filters.Level)
	}

	lessons, total, err := s.lessonRepo.ListLessons(ctx, filters.Topic, level, page.Limit, page.Offset)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list lessons", err)
	}

	items := make([]dto.LessonResponse, 0, len(lessons))
	for i := range lessons {
		items = append(items, *dto.NewLessonResponse(&lessons[i]))
	}
	return &dto.LessonListResponse{
		Lessons:        items,
		PaginationInfo: dto.NewPaginationInfo(page, int64(total)),
	}, nil
}

func (s *lessonServiceImpl) ListTopics(ctx context.Context) (*dto.TopicsResponse, error) {
	topics, err := s.lessonRepo.ListTopics(ctx)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list topics", err)
	}
	if topics == nil {
		topics = []string{}
	}
	return &dto.TopicsResponse{Topics: topics}, nil
}

func (s *lessonServiceImpl) cachedLesson(ctx context.Context, key string) *dto.LessonResponse {
	if s.cacheImpl == nil {
		return nil
	}
	raw, err := s.cacheImpl.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Warn("Story cache read failed", zap.Error(err), zap.String("key", key))
		}
		return nil
	}
	var response dto.LessonResponse
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		logger.Get().Warn("Cached story is corrupt, regenerating", zap.Error(err), zap.String("key", key))
		return nil
	}
	return &response
}

func (s *lessonServiceImpl) cacheLesson(ctx context.Context, key string, response *dto.LessonResponse) {
	if s.cacheImpl == nil {
		return
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.cacheImpl.Set(ctx, key, string(raw), s.storyTTL); err != nil {
		logger.Get().Warn("Story cache write failed", zap.Error(err), zap.String("key", key))
	}
}
