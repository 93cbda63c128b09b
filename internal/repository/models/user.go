package models

import (
	"database/sql"
	"time"
)

// User represents a row of the users table.
type User struct {
	ID           string         `db:"id"`            // ULID
	Email        string         `db:"email"`         // User's email address, unique
	PasswordHash sql.NullString `db:"password_hash"` // PBKDF2 hash as hex salt and hash, NULL for OAuth-only users
	GoogleID     sql.NullString `db:"google_id"`     // Google's unique identifier for the user
	DisplayName  sql.NullString `db:"display_name"`  // User's display name
	CreatedAt    time.Time      `db:"created_at"`    // Timestamp of user creation
	UpdatedAt    time.Time      `db:"updated_at"`    // Timestamp of last update
	LastLoginAt  sql.NullTime   `db:"last_login_at"` // Timestamp of last successful login
	DeletedAt    sql.NullTime   `db:"deleted_at"`    // Timestamp of soft deletion, if applicable
}

// UserProfile represents a row of the user_profiles table.
type UserProfile struct {
	UserID                string         `db:"user_id"`                 // Foreign key to users table, primary key
	DisplayName           sql.NullString `db:"display_name"`            // Display name shown in the app
	PreferredLevel        string         `db:"preferred_level"`         // Preferred lesson level
	TotalLessonsCompleted int            `db:"total_lessons_completed"` // Running counter
	TotalQuizzesTaken     int            `db:"total_quizzes_taken"`     // Running counter
	AverageQuizScore      float64        `db:"average_quiz_score"`      // Rolling mean over all attempts
	CurrentStreak         int            `db:"current_streak"`          // Consecutive study days, current run
	LongestStreak         int            `db:"longest_streak"`          // Consecutive study days, best run
	LastActivityDate      sql.NullTime   `db:"last_activity_date"`      // Day of the most recent study activity
	FavoriteTopics        StringSlice    `db:"favorite_topics"`         // Topic names, JSON CLOB
	TopicPerformance      JSONMap        `db:"topic_performance"`       // Topic to average score, JSON CLOB
	Settings              sql.NullString `db:"settings"`                // Presentation preferences, JSON CLOB
	CreatedAt             time.Time      `db:"created_at"`              // Timestamp of record creation
	UpdatedAt             time.Time      `db:"updated_at"`              // Timestamp of last update
}
