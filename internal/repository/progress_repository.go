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

// progressColumns lists every user_lesson_progress column with a quoted
// lowercase alias so result names match the model's db tags.
const progressColumns = `
	id "id",
	user_id "user_id",
	lesson_id "lesson_id",
	status "status",
	lesson_views "lesson_views",
	translation_toggles "translation_toggles",
	quiz_taken "quiz_taken",
	quiz_score "quiz_score",
	quiz_attempts "quiz_attempts",
	best_quiz_score "best_quiz_score",
	time_spent_minutes "time_spent_minutes",
	completion_date "completion_date",
	last_accessed "last_accessed",
	created_at "created_at",
	updated_at "updated_at"`

const snapshotColumns = `
	id "id",
	user_id "user_id",
	period_days "period_days",
	metrics "metrics",
	computed_at "computed_at"`

// sqlxProgressRepository implements domain.ProgressRepository using sqlx.
type sqlxProgressRepository struct {
	db *sqlx.DB
}

// NewSQLXProgressRepository creates a new instance of sqlxProgressRepository.
func NewSQLXProgressRepository(db *sqlx.DB) domain.ProgressRepository {
	return &sqlxProgressRepository{db: db}
}

func toDomainLessonProgress(m *models.UserLessonProgress) *domain.UserLessonProgress {
	if m == nil {
		return nil
	}
	return &domain.UserLessonProgress{
		ID:                 m.ID,
		UserID:             m.UserID,
		LessonID:           m.LessonID,
		Status:             domain.LessonStatus(m.Status),
		LessonViews:        m.LessonViews,
		TranslationToggles: m.TranslationToggles,
		QuizTaken:          m.QuizTaken,
		QuizScore:          m.QuizScore,
		QuizAttempts:       m.QuizAttempts,
		BestQuizScore:      m.BestQuizScore,
		TimeSpentMinutes:   m.TimeSpentMinutes,
		CompletionDate:     util.NullTimeToPtr(m.CompletionDate),
		LastAccessed:       m.LastAccessed,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func fromDomainLessonProgress(d *domain.UserLessonProgress) *models.UserLessonProgress {
	if d == nil {
		return nil
	}
	return &models.UserLessonProgress{
		ID:                 d.ID,
		UserID:             d.UserID,
		LessonID:           d.LessonID,
		Status:             string(d.Status),
		LessonViews:        d.LessonViews,
		TranslationToggles: d.TranslationToggles,
		QuizTaken:          d.QuizTaken,
		QuizScore:          d.QuizScore,
		QuizAttempts:       d.QuizAttempts,
		BestQuizScore:      d.BestQuizScore,
		TimeSpentMinutes:   d.TimeSpentMinutes,
		CompletionDate:     util.PtrTimeToNullTime(d.CompletionDate),
		LastAccessed:       d.LastAccessed,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func toDomainSnapshot(m *models.ProgressSnapshot) *domain.ProgressSnapshot {
	if m == nil {
		return nil
	}
	return &domain.ProgressSnapshot{
		UserID:     m.UserID,
		PeriodDays: m.PeriodDays,
		Metrics:    map[string]interface{}(m.Metrics),
		ComputedAt: m.ComputedAt,
	}
}

// UpsertLessonProgress inserts the progress row or updates the existing one
// for the (user, lesson) pair.
func (r *sqlxProgressRepository) UpsertLessonProgress(ctx context.Context, progress *domain.UserLessonProgress) error {
	if progress == nil {
		return fmt.Errorf("cannot upsert nil progress")
	}

	modelProgress := fromDomainLessonProgress(progress)
	if modelProgress.CreatedAt.IsZero() {
		modelProgress.CreatedAt = time.Now()
	}
	modelProgress.UpdatedAt = time.Now()

	executor := GetExecutor(ctx, r.db)

	updateQuery := `UPDATE user_lesson_progress SET
	                  status = :status,
	                  lesson_views = :lesson_views,
	                  translation_toggles = :translation_toggles,
	                  quiz_taken = :quiz_taken,
	                  quiz_score = :quiz_score,
	                  quiz_attempts = :quiz_attempts,
	                  best_quiz_score = :best_quiz_score,
	                  time_spent_minutes = :time_spent_minutes,
	                  completion_date = :completion_date,
	                  last_accessed = :last_accessed,
	                  updated_at = :updated_at
	                WHERE user_id = :user_id AND lesson_id = :lesson_id`

	result, err := executor.NamedExecContext(ctx, updateQuery, modelProgress)
	if err != nil {
		return fmt.Errorf("failed to update lesson progress: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for progress update: %w", err)
	}
	if rowsAffected > 0 {
		progress.UpdatedAt = modelProgress.UpdatedAt
		return nil
	}

	if modelProgress.ID == "" {
		modelProgress.ID = util.NewULID()
	}

	insertQuery := `INSERT INTO user_lesson_progress (id, user_id, lesson_id, status, lesson_views, translation_toggles, quiz_taken, quiz_score, quiz_attempts, best_quiz_score, time_spent_minutes, completion_date, last_accessed, created_at, updated_at)
	                VALUES (:id, :user_id, :lesson_id, :status, :lesson_views, :translation_toggles, :quiz_taken, :quiz_score, :quiz_attempts, :best_quiz_score, :time_spent_minutes, :completion_date, :last_accessed, :created_at, :updated_at)`

	if _, err := executor.NamedExecContext(ctx, insertQuery, modelProgress); err != nil {
		return fmt.Errorf("failed to insert lesson progress: %w", err)
	}

	progress.ID = modelProgress.ID
	progress.CreatedAt = modelProgress.CreatedAt
	progress.UpdatedAt = modelProgress.UpdatedAt
	return nil
}

// GetLessonProgress retrieves one user's progress on one lesson.
func (r *sqlxProgressRepository) GetLessonProgress(ctx context.Context, userID, lessonID string) (*domain.UserLessonProgress, error) {
	var modelProgress models.UserLessonProgress
	query := `SELECT ` + progressColumns + `
	FROM user_lesson_progress
	WHERE user_id = :1
	AND lesson_id = :2`

	executor := GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &modelProgress, query, userID, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lesson progress: %w", err)
	}
	return toDomainLessonProgress(&modelProgress), nil
}

// ListLessonProgress returns all progress rows for a user, most recently
// accessed first.
func (r *sqlxProgressRepository) ListLessonProgress(ctx context.Context, userID string) ([]domain.UserLessonProgress, error) {
	query := `SELECT ` + progressColumns + `
	FROM user_lesson_progress
	WHERE user_id = :1
	ORDER BY last_accessed DESC`

	executor := GetExecutor(ctx, r.db)
	var modelRows []models.UserLessonProgress
	if err := executor.SelectContext(ctx, &modelRows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list lesson progress: %w", err)
	}

	rows := make([]domain.UserLessonProgress, 0, len(modelRows))
	for i := range modelRows {
		rows = append(rows, *toDomainLessonProgress(&modelRows[i]))
	}
	return rows, nil
}

// ListProgressUpdatedSince returns a user's progress rows changed after the
// given time, oldest first, capped at limit rows.
func (r *sqlxProgressRepository) ListProgressUpdatedSince(ctx context.Context, userID string, since time.Time, limit int) ([]domain.UserLessonProgress, error) {
	query := `SELECT ` + progressColumns + `
	FROM user_lesson_progress
	WHERE user_id = :1
	AND updated_at > :2
	ORDER BY updated_at ASC
	FETCH FIRST :3 ROWS ONLY`

	executor := GetExecutor(ctx, r.db)
	var modelRows []models.UserLessonProgress
	if err := executor.SelectContext(ctx, &modelRows, query, userID, since, limit); err != nil {
		return nil, fmt.Errorf("failed to list progress updated since %s: %w", since, err)
	}

	rows := make([]domain.UserLessonProgress, 0, len(modelRows))
	for i := range modelRows {
		rows = append(rows, *toDomainLessonProgress(&modelRows[i]))
	}
	return rows, nil
}

// SaveSnapshot persists a computed metrics snapshot.
func (r *sqlxProgressRepository) SaveSnapshot(ctx context.Context, snapshot *domain.ProgressSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("cannot save nil snapshot")
	}

	modelSnapshot := &models.ProgressSnapshot{
		ID:         util.NewULID(),
		UserID:     snapshot.UserID,
		PeriodDays: snapshot.PeriodDays,
		Metrics:    models.JSONMap(snapshot.Metrics),
		ComputedAt: snapshot.ComputedAt,
	}
	if modelSnapshot.ComputedAt.IsZero() {
		modelSnapshot.ComputedAt = time.Now()
	}

	query := `INSERT INTO progress_snapshots (id, user_id, period_days, metrics, computed_at)
	          VALUES (:id, :user_id, :period_days, :metrics, :computed_at)`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.NamedExecContext(ctx, query, modelSnapshot); err != nil {
		return fmt.Errorf("failed to save progress snapshot: %w", err)
	}

	snapshot.ComputedAt = modelSnapshot.ComputedAt
	return nil
}

// GetLatestSnapshot returns the most recent snapshot for a user and period.
func (r *sqlxProgressRepository) GetLatestSnapshot(ctx context.Context, userID string, periodDays int) (*domain.ProgressSnapshot, error) {
	var modelSnapshot models.ProgressSnapshot
	query := `SELECT ` + snapshotColumns + `
	FROM progress_snapshots
	WHERE user_id = :1
	AND period_days = :2
	ORDER BY computed_at DESC
	FETCH FIRST 1 ROWS ONLY`

	executor := GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &modelSnapshot, query, userID, periodDays)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return toDomainSnapshot(&modelSnapshot), nil
}

// ListSnapshotsSince returns a user's snapshots computed after the given
// time, oldest first.
func (r *sqlxProgressRepository) ListSnapshotsSince(ctx context.Context, userID string, since time.Time) ([]domain.ProgressSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
	FROM progress_snapshots
	WHERE user_id = :1
	AND computed_at > :2
	ORDER BY computed_at ASC`

	executor := GetExecutor(ctx, r.db)
	var modelRows []models.ProgressSnapshot
	if err := executor.SelectContext(ctx, &modelRows, query, userID, since); err != nil {
		return nil, fmt.Errorf("failed to list snapshots since %s: %w", since, err)
	}

	rows := make([]domain.ProgressSnapshot, 0, len(modelRows))
	for i := range modelRows {
		rows = append(rows, *toDomainSnapshot(&modelRows[i]))
	}
	return rows, nil
}
