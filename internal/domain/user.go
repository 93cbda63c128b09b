package domain

import (
	"regexp"
	"strings"
	"time"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// User represents a domain user object. A user registers with email and
// password or arrives through Google OAuth; either way email is the
// identity anchor.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	GoogleID     string
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
	DeletedAt    *time.Time
}

// NewUser creates a new User instance
func NewUser(email string) *User {
	now := time.Now()
	return &User{
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate validates the user
func (u *User) Validate() error {
	if !IsValidEmail(u.Email) {
		return NewInvalidInputError("a valid email address is required")
	}
	if u.PasswordHash == "" && u.GoogleID == "" {
		return NewInvalidInputError("either a password or a google account is required")
	}
	return nil
}

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ValidatePassword enforces the registration password policy: at least 8
// characters including one special character.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return NewInvalidInputError("password must be at least 8 characters long")
	}
	if !strings.ContainsAny(password, `!@#$%^&*()_+-=[]{};':"\|,.<>/?~`+"`") {
		return NewInvalidInputError("password must contain at least one special character")
	}
	return nil
}

// UserProfile aggregates a learner's study identity: display data,
// preferences, and rolling study statistics maintained by the progress
// layer.
type UserProfile struct {
	UserID                string
	DisplayName           string
	PreferredLevel        Level
	TotalLessonsCompleted int
	TotalQuizzesTaken     int
	AverageQuizScore      float64
	CurrentStreak         int
	LongestStreak         int
	LastActivityDate      *time.Time
	FavoriteTopics        []string
	TopicPerformance      map[string]float64
	Settings              ProfileSettings
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ProfileSettings holds per-user presentation preferences.
type ProfileSettings struct {
	Dialect              string `json:"dialect"`
	Difficulty           string `json:"difficulty"`
	TransliterationStyle string `json:"transliteration_style"`
	DailyGoalMinutes     int    `json:"daily_goal_minutes"`
}

// NewUserProfile creates a profile with defaults for a fresh user.
func NewUserProfile(userID, displayName string) *UserProfile {
	now := time.Now()
	return &UserProfile{
		UserID:           userID,
		DisplayName:      displayName,
		PreferredLevel:   LevelBeginner,
		FavoriteTopics:   []string{},
		TopicPerformance: map[string]float64{},
		Settings: ProfileSettings{
			Dialect:              "lebanese",
			Difficulty:           "normal",
			TransliterationStyle: "arabizi",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
