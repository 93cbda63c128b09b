package service

import (
	"context"
	"errors"
	"testing"

	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quizServiceFixture struct {
	svc        QuizService
	lesson     *domain.Lesson
	storedQuiz *domain.Quiz
	genCalls   int
}

func newQuizServiceFixture(t *testing.T, cacheImpl domain.Cache) *quizServiceFixture {
	t.Helper()
	f := &quizServiceFixture{
		lesson: &domain.Lesson{
			ID:     "01HLESSONAAAAAAAAAAAAAAAAA",
			Topic:  "greetings",
			Level:  domain.LevelBeginner,
			EnText: "Good morning!",
			LaText: "Sabah el kheir!",
		},
	}

	lessonRepo := &mockLessonRepository{
		GetLessonByIDFunc: func(ctx context.Context, id string) (*domain.Lesson, error) {
			if id == f.lesson.ID {
				return f.lesson, nil
			}
			return nil, nil
		},
	}
	quizRepo := &mockQuizRepository{
		GetQuizByLessonIDFunc: func(ctx context.Context, lessonID string) (*domain.Quiz, error) {
			if f.storedQuiz != nil && f.storedQuiz.LessonID == lessonID {
				return f.storedQuiz, nil
			}
			return nil, nil
		},
		CreateQuizFunc: func(ctx context.Context, quiz *domain.Quiz) error {
			f.storedQuiz = quiz
			return nil
		},
	}
	quizGen := &mockQuizGenerator{
		GenerateQuizFunc: func(ctx context.Context, lesson *domain.Lesson) ([]domain.QuizQuestion, error) {
			f.genCalls++
			return threeQuestionQuiz().Questions, nil
		},
	}

	f.svc = NewQuizService(lessonRepo, quizRepo, quizGen, cacheImpl, &config.Config{})
	return f
}

func TestGetOrGenerateQuizGeneratesOnce(t *testing.T) {
	f := newQuizServiceFixture(t, newMemoryCache())
	ctx := context.Background()

	first, err := f.svc.GetOrGenerateQuiz(ctx, &dto.QuizRequest{LessonID: f.lesson.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, f.genCalls)
	assert.Len(t, first.Questions, 3)
	require.NotNil(t, f.storedQuiz)

	// Repeat calls reuse the stored quiz instead of regenerating.
	second, err := f.svc.GetOrGenerateQuiz(ctx, &dto.QuizRequest{LessonID: f.lesson.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, f.genCalls)
	assert.Equal(t, first.QuizID, second.QuizID)
}

func TestGetOrGenerateQuizReturnsExisting(t *testing.T) {
	f := newQuizServiceFixture(t, nil)
	existing := threeQuestionQuiz()
	existing.LessonID = f.lesson.ID
	f.storedQuiz = existing

	resp, err := f.svc.GetOrGenerateQuiz(context.Background(), &dto.QuizRequest{LessonID: f.lesson.ID})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, resp.QuizID)
	assert.Equal(t, 0, f.genCalls)
}

func TestGetOrGenerateQuizLessonNotFound(t *testing.T) {
	f := newQuizServiceFixture(t, nil)

	_, err := f.svc.GetOrGenerateQuiz(context.Background(), &dto.QuizRequest{LessonID: "01HNOSUCHLESSONAAAAAAAAAAA"})
	require.Error(t, err)
	domainErr, ok := err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, domain.CodeLessonNotFound, domainErr.Code)

	_, err = f.svc.GetOrGenerateQuiz(context.Background(), &dto.QuizRequest{})
	require.Error(t, err)
}

func TestGetOrGenerateQuizIncompleteLesson(t *testing.T) {
	f := newQuizServiceFixture(t, nil)
	f.lesson.LaText = ""

	_, err := f.svc.GetOrGenerateQuiz(context.Background(), &dto.QuizRequest{LessonID: f.lesson.ID})
	require.Error(t, err)
}

func TestGetOrGenerateQuizGenerationFailure(t *testing.T) {
	f := newQuizServiceFixture(t, nil)
	svc := NewQuizService(
		&mockLessonRepository{
			GetLessonByIDFunc: func(ctx context.Context, id string) (*domain.Lesson, error) {
				return f.lesson, nil
			},
		},
		&mockQuizRepository{
			GetQuizByLessonIDFunc: func(ctx context.Context, lessonID string) (*domain.Quiz, error) {
				return nil, nil
			},
		},
		&mockQuizGenerator{
			GenerateQuizFunc: func(ctx context.Context, lesson *domain.Lesson) ([]domain.QuizQuestion, error) {
				return nil, errors.New("connection refused")
			},
		},
		nil,
		&config.Config{},
	)

	_, err := svc.GetOrGenerateQuiz(context.Background(), &dto.QuizRequest{LessonID: f.lesson.ID})
	require.Error(t, err)
	domainErr, ok := err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, domain.CodeLLMServiceError, domainErr.Code)
}

func TestGetOrGenerateQuizRejectsTooFewQuestions(t *testing.T) {
	f := newQuizServiceFixture(t, nil)
	svc := NewQuizService(
		&mockLessonRepository{
			GetLessonByIDFunc: func(ctx context.Context, id string) (*domain.Lesson, error) {
				return f.lesson, nil
			},
		},
		&mockQuizRepository{
			GetQuizByLessonIDFunc: func(ctx context.Context, lessonID string) (*domain.Quiz, error) {
				return nil, nil
			},
		},
		&mockQuizGenerator{
			GenerateQuizFunc: func(ctx context.Context, lesson *domain.Lesson) ([]domain.QuizQuestion, error) {
				return threeQuestionQuiz().Questions[:1], nil
			},
		},
		nil,
		&config.Config{},
	)

	_, err := svc.GetOrGenerateQuiz(context.Background(), &dto.QuizRequest{LessonID: f.lesson.ID})
	require.Error(t, err)
}
