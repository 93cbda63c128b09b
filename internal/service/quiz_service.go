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

	"go.uber.org/zap"
)

// QuizService serves quizzes for lessons, generating one on first request.
type QuizService interface {
	// GetOrGenerateQuiz returns the lesson's quiz, generating and persisting
	// one when the lesson has none yet. Repeat calls return the same quiz.
	GetOrGenerateQuiz(ctx context.Context, req *dto.QuizRequest) (*dto.QuizResponse, error)
}

type quizServiceImpl struct {
	lessonRepo domain.LessonRepository
	quizRepo   domain.QuizRepository
	quizGen    domain.QuizGenerator
	cacheImpl  domain.Cache
	quizTTL    time.Duration
}

// NewQuizService creates a new instance of QuizService.
func NewQuizService(
	lessonRepo domain.LessonRepository,
	quizRepo domain.QuizRepository,
	quizGen domain.QuizGenerator,
	cacheImpl domain.Cache,
	cfg *config.Config,
) QuizService {
	return &quizServiceImpl{
		lessonRepo: lessonRepo,
		quizRepo:   quizRepo,
		quizGen:    quizGen,
		cacheImpl:  cacheImpl,
		quizTTL:    cfg.ParseTTLStringOrDefault(cfg.CacheTTLs.Quiz, 24*time.Hour),
	}
}

func (s *quizServiceImpl) GetOrGenerateQuiz(ctx context.Context, req *dto.QuizRequest) (*dto.QuizResponse, error) {
	if req.LessonID == "" {
		return nil, domain.NewInvalidInputError("lesson_id is required")
	}

	lesson, err := s.lessonRepo.GetLessonByID(ctx, req.LessonID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to load lesson", err)
	}
	if lesson == nil {
		return nil, domain.NewLessonNotFoundError(req.LessonID)
	}
	if !lesson.HasBothTexts() {
		return nil, domain.NewInvalidInputError("lesson is missing one of its language sides")
	}

	cacheKey := cache.QuizKey(lesson.ID, lesson.EnText, lesson.LaText)
	if cached := s.cachedQuiz(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	existing, err := s.quizRepo.GetQuizByLessonID(ctx, lesson.ID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to look up quiz", err)
	}
	if existing != nil {
		response := dto.NewQuizResponse(existing)
		s.cacheQuiz(ctx, cacheKey, response)
		return response, nil
	}

	questions, err := s.quizGen.GenerateQuiz(ctx, lesson)
	if err != nil {
		logger.Get().Error("Quiz generation failed",
			zap.Error(err),
			zap.String("lessonID", lesson.ID))
		return nil, domain.NewLLMServiceError(err)
	}

	quiz := domain.NewQuiz(lesson.ID, questions, map[string]interface{}{
		"source": "ollama",
	})
	quiz.ID = util.NewULID()
	if err := quiz.Validate(); err != nil {
		logger.Get().Error("Generated quiz failed validation",
			zap.Error(err),
			zap.String("lessonID", lesson.ID))
		return nil, domain.NewLLMServiceError(err)
	}

	if err := s.quizRepo.CreateQuiz(ctx, quiz); err != nil {
		return nil, domain.NewDatabaseError("failed to save quiz", err)
	}

	response := dto.NewQuizResponse(quiz)
	s.cacheQuiz(ctx, cacheKey, response)

	logger.Get().Info("Quiz generated",
		zap.String("quizID", quiz.ID),
		zap.String("lessonID", lesson.ID),
		zap.Int("questions", quiz.QuestionCount()))
	return response, nil
}

func (s *quizServiceImpl) cachedQuiz(ctx context.Context, key string) *dto.QuizResponse {
	if s.cacheImpl == nil {
		return nil
	}
	raw, err := s.cacheImpl.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Warn("Quiz cache read failed", zap.Error(err), zap.String("key", key))
		}
		return nil
	}
	var response dto.QuizResponse
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		return nil
	}
	return &response
}

func (s *quizServiceImpl) cacheQuiz(ctx context.Context, key string, response *dto.QuizResponse) {
	if s.cacheImpl == nil {
		return
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.cacheImpl.Set(ctx, key, string(raw), s.quizTTL); err != nil {
		logger.Get().Warn("Quiz cache write failed", zap.Error(err), zap.String("key", key))
	}
}
