package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leblingo/internal/domain"
	"leblingo/internal/repository/models"
	"leblingo/internal/util"

	"github.com/jmoiron/sqlx"
)

// quizColumns lists every quizzes column with a quoted lowercase alias so
// result names match the model's db tags.
const quizColumns = `
	id "id",
	lesson_id "lesson_id",
	questions "questions",
	metadata "metadata",
	created_at "created_at",
	updated_at "updated_at",
	deleted_at "deleted_at"`

// sqlxQuizRepository implements domain.QuizRepository using sqlx.
type sqlxQuizRepository struct {
	db *sqlx.DB
}

// NewSQLXQuizRepository creates a new instance of sqlxQuizRepository.
func NewSQLXQuizRepository(db *sqlx.DB) domain.QuizRepository {
	return &sqlxQuizRepository{db: db}
}

func toDomainQuestion(m models.QuestionModel) domain.QuizQuestion {
	questionType, _ := domain.ParseQuestionType(m.Type)
	return domain.QuizQuestion{
		Type:         questionType,
		Question:     m.Question,
		Choices:      m.Choices,
		AnswerIndex:  m.AnswerIndex,
		AnswerText:   m.AnswerText,
		AnswerBlanks: m.AnswerBlanks,
		Rationale:    m.Rationale,
	}
}

func fromDomainQuestion(d domain.QuizQuestion) models.QuestionModel {
	return models.QuestionModel{
		Type:         string(d.Type),
		Question:     d.Question,
		Choices:      d.Choices,
		AnswerIndex:  d.AnswerIndex,
		AnswerText:   d.AnswerText,
		AnswerBlanks: d.AnswerBlanks,
		Rationale:    d.Rationale,
	}
}

func toDomainQuiz(m *models.Quiz) *domain.Quiz {
	if m == nil {
		return nil
	}
	questions := make([]domain.QuizQuestion, 0, len(m.Questions))
	for _, q := range m.Questions {
		questions = append(questions, toDomainQuestion(q))
	}
	return &domain.Quiz{
		ID:        m.ID,
		LessonID:  m.LessonID,
		Questions: questions,
		Metadata:  map[string]interface{}(m.Metadata),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func fromDomainQuiz(d *domain.Quiz) *models.Quiz {
	if d == nil {
		return nil
	}
	questions := make(models.QuestionSlice, 0, len(d.Questions))
	for _, q := range d.Questions {
		questions = append(questions, fromDomainQuestion(q))
	}
	return &models.Quiz{
		ID:        d.ID,
		LessonID:  d.LessonID,
		Questions: questions,
		Metadata:  models.JSONMap(d.Metadata),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// CreateQuiz inserts a new quiz.
func (r *sqlxQuizRepository) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	if quiz == nil {
		return fmt.Errorf("cannot create nil quiz")
	}

	modelQuiz := fromDomainQuiz(quiz)
	if modelQuiz.ID == "" {
		modelQuiz.ID = util.NewULID()
	}
	if modelQuiz.CreatedAt.IsZero() {
		modelQuiz.CreatedAt = time.Now()
	}
	modelQuiz.UpdatedAt = time.Now()

	query := `INSERT INTO quizzes (id, lesson_id, questions, metadata, created_at, updated_at)
	          VALUES (:id, :lesson_id, :questions, :metadata, :created_at, :updated_at)`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.NamedExecContext(ctx, query, modelQuiz); err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	quiz.ID = modelQuiz.ID
	quiz.CreatedAt = modelQuiz.CreatedAt
	quiz.UpdatedAt = modelQuiz.UpdatedAt
	return nil
}

// GetQuizByID retrieves a quiz by its ID.
func (r *sqlxQuizRepository) GetQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	var modelQuiz models.Quiz
	query := `SELECT ` + quizColumns + `
	FROM quizzes
	WHERE id = :1
	AND deleted_at IS NULL`

	executor := GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &modelQuiz, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quiz by id %s: %w", id, err)
	}
	return toDomainQuiz(&modelQuiz), nil
}

// GetQuizByLessonID retrieves the most recent quiz for a lesson.
func (r *sqlxQuizRepository) GetQuizByLessonID(ctx context.Context, lessonID string) (*domain.Quiz, error) {
	var modelQuiz models.Quiz
	query := `SELECT ` + quizColumns + `
	FROM quizzes
	WHERE lesson_id = :1
	AND deleted_at IS NULL
	ORDER BY created_at DESC
	FETCH FIRST 1 ROWS ONLY`

	executor := GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &modelQuiz, query, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quiz for lesson %s: %w", lessonID, err)
	}
	return toDomainQuiz(&modelQuiz), nil
}

// ListQuizzesUpdatedSince returns quizzes changed after the given time,
// oldest first, capped at limit rows.
func (r *sqlxQuizRepository) ListQuizzesUpdatedSince(ctx context.Context, since time.Time, limit int) ([]domain.Quiz, error) {
	query := `SELECT ` + quizColumns + `
	FROM quizzes
	WHERE updated_at > :1
	AND deleted_at IS NULL
	ORDER BY updated_at ASC
	FETCH FIRST :2 ROWS ONLY`

	executor := GetExecutor(ctx, r.db)
	var modelQuizzes []models.Quiz
	if err := executor.SelectContext(ctx, &modelQuizzes, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to list quizzes updated since %s: %w", since, err)
	}

	quizzes := make([]domain.Quiz, 0, len(modelQuizzes))
	for i := range modelQuizzes {
		quizzes = append(quizzes, *toDomainQuiz(&modelQuizzes[i]))
	}
	return quizzes, nil
}
