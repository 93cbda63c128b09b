package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leblingo/internal/domain"
	"leblingo/internal/repository/models"
	"leblingo/internal/util"

	"github.com/jmoiron/sqlx"
)

// profileColumns lists every user_profiles column with a quoted lowercase
// alias so result names match the model's db tags.
const profileColumns = `
	user_id "user_id",
	display_name "display_name",
	preferred_level "preferred_level",
	total_lessons_completed "total_lessons_completed",
	total_quizzes_taken "total_quizzes_taken",
	average_quiz_score "average_quiz_score",
	current_streak "current_streak",
	longest_streak "longest_streak",
	last_activity_date "last_activity_date",
	favorite_topics "favorite_topics",
	topic_performance "topic_performance",
	settings "settings",
	created_at "created_at",
	updated_at "updated_at"`

// sqlxProfileRepository implements domain.ProfileRepository using sqlx.
type sqlxProfileRepository struct {
	db *sqlx.DB
}

// NewSQLXProfileRepository creates a new instance of sqlxProfileRepository.
func NewSQLXProfileRepository(db *sqlx.DB) domain.ProfileRepository {
	return &sqlxProfileRepository{db: db}
}

func toDomainProfile(m *models.UserProfile) *domain.UserProfile {
	if m == nil {
		return nil
	}

	performance := make(map[string]float64, len(m.TopicPerformance))
	for topic, v := range m.TopicPerformance {
		if score, ok := v.(float64); ok {
			performance[topic] = score
		}
	}

	var settings domain.ProfileSettings
	if m.Settings.Valid && m.Settings.String != "" {
		// A corrupt settings document degrades to defaults rather than
		// failing the whole profile read.
		_ = json.Unmarshal([]byte(m.Settings.String), &settings)
	}

	return &domain.UserProfile{
		UserID:                m.UserID,
		DisplayName:           m.DisplayName.String,
		PreferredLevel:        domain.ParseLevel(m.PreferredLevel),
		TotalLessonsCompleted: m.TotalLessonsCompleted,
		TotalQuizzesTaken:     m.TotalQuizzesTaken,
		AverageQuizScore:      m.AverageQuizScore,
		CurrentStreak:         m.CurrentStreak,
		LongestStreak:         m.LongestStreak,
		LastActivityDate:      util.NullTimeToPtr(m.LastActivityDate),
		FavoriteTopics:        []string(m.FavoriteTopics),
		TopicPerformance:      performance,
		Settings:              settings,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

func fromDomainProfile(d *domain.UserProfile) (*models.UserProfile, error) {
	if d == nil {
		return nil, fmt.Errorf("cannot map nil profile")
	}

	performance := make(models.JSONMap, len(d.TopicPerformance))
	for topic, score := range d.TopicPerformance {
		performance[topic] = score
	}

	settingsJSON, err := json.Marshal(d.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile settings: %w", err)
	}

	return &models.UserProfile{
		UserID:                d.UserID,
		DisplayName:           util.StringToNullString(d.DisplayName),
		PreferredLevel:        string(d.PreferredLevel),
		TotalLessonsCompleted: d.TotalLessonsCompleted,
		TotalQuizzesTaken:     d.TotalQuizzesTaken,
		AverageQuizScore:      d.AverageQuizScore,
		CurrentStreak:         d.CurrentStreak,
		LongestStreak:         d.LongestStreak,
		LastActivityDate:      util.PtrTimeToNullTime(d.LastActivityDate),
		FavoriteTopics:        models.StringSlice(d.FavoriteTopics),
		TopicPerformance:      performance,
		Settings:              util.StringToNullString(string(settingsJSON)),
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}, nil
}

// GetProfile retrieves a user's profile.
func (r *sqlxProfileRepository) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var modelProfile models.UserProfile
	query := `SELECT ` + profileColumns + `
	FROM user_profiles
	WHERE user_id = :1`

	executor := GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &modelProfile, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile for user %s: %w", userID, err)
	}
	return toDomainProfile(&modelProfile), nil
}

// UpsertProfile inserts the profile or updates the existing row for the
// user.
func (r *sqlxProfileRepository) UpsertProfile(ctx context.Context, profile *domain.UserProfile) error {
	modelProfile, err := fromDomainProfile(profile)
	if err != nil {
		return err
	}
	if modelProfile.CreatedAt.IsZero() {
		modelProfile.CreatedAt = time.Now()
	}
	modelProfile.UpdatedAt = time.Now()

	executor := GetExecutor(ctx, r.db)

	updateQuery := `UPDATE user_profiles SET
	                  display_name = :display_name,
	                  preferred_level = :preferred_level,
	                  total_lessons_completed = :total_lessons_completed,
	                  total_quizzes_taken = :total_quizzes_taken,
	                  average_quiz_score = :average_quiz_score,
	                  current_streak = :current_streak,
	                  longest_streak = :longest_streak,
	                  last_activity_date = :last_activity_date,
	                  favorite_topics = :favorite_topics,
	                  topic_performance = :topic_performance,
	                  settings = :settings,
	                  updated_at = :updated_at
	                WHERE user_id = :user_id`

	result, err := executor.NamedExecContext(ctx, updateQuery, modelProfile)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for profile update: %w", err)
	}
	if rowsAffected > 0 {
		profile.UpdatedAt = modelProfile.UpdatedAt
		return nil
	}

	insertQuery := `INSERT INTO user_profiles (user_id, display_name, preferred_level, total_lessons_completed, total_quizzes_taken, average_quiz_score, current_streak, longest_streak, last_activity_date, favorite_topics, topic_performance, settings, created_at, updated_at)
	                VALUES (:user_id, :display_name, :preferred_level, :total_lessons_completed, :total_quizzes_taken, :average_quiz_score, :current_streak, :longest_streak, :last_activity_date, :favorite_topics, :topic_performance, :settings, :created_at, :updated_at)`

	if _, err := executor.NamedExecContext(ctx, insertQuery, modelProfile); err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	profile.CreatedAt = modelProfile.CreatedAt
	profile.UpdatedAt = modelProfile.UpdatedAt
	return nil
}
