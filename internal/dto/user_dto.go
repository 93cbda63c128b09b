package dto

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"leblingo/internal/domain"
)

// GoogleUserInfo holds user information obtained from Google.
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

// AuthClaims defines the custom claims for JWT.
type AuthClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"token_type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// RegisterRequest represents the request body for email registration.
// @Description Request body for registering a new user
type RegisterRequest struct {
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"display_name,omitempty"`
}

// LoginRequest represents the request body for email login.
// @Description Request body for logging in
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse represents the response containing access and refresh tokens.
// @Description Response body for authentication tokens
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenRequest represents the request body for refreshing a token.
// @Description Request body for refreshing JWT tokens
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthenticatedUser represents the user data returned upon successful
// authentication by the AuthService, intended for internal use before
// constructing the final HTTP response.
type AuthenticatedUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// --- Profile DTOs ---

// ProfileSettings holds per-user presentation preferences on the wire.
type ProfileSettings struct {
	Dialect              string `json:"dialect"`
	Difficulty           string `json:"difficulty"`
	TransliterationStyle string `json:"transliteration_style"`
	DailyGoalMinutes     int    `json:"daily_goal_minutes"`
}

// UserProfileResponse defines the structure for a user's profile information.
// @Description User profile with study statistics
type UserProfileResponse struct {
	ID                    string             `json:"id"`
	Email                 string             `json:"email"`
	DisplayName           string             `json:"display_name,omitempty"`
	PreferredLevel        string             `json:"preferred_level"`
	TotalLessonsCompleted int                `json:"total_lessons_completed"`
	TotalQuizzesTaken     int                `json:"total_quizzes_taken"`
	AverageQuizScore      float64            `json:"average_quiz_score"`
	CurrentStreak         int                `json:"current_streak"`
	LongestStreak         int                `json:"longest_streak"`
	LastActivityDate      *time.Time         `json:"last_activity_date,omitempty"`
	FavoriteTopics        []string           `json:"favorite_topics"`
	TopicPerformance      map[string]float64 `json:"topic_performance,omitempty"`
	Settings              ProfileSettings    `json:"settings"`
	CreatedAt             time.Time          `json:"created_at"`
}

// NewUserProfileResponse maps a user and profile pair onto the wire shape.
func NewUserProfileResponse(user *domain.User, profile *domain.UserProfile) *UserProfileResponse {
	resp := &UserProfileResponse{
		ID:    user.ID,
		Email: user.Email,
	}
	if profile == nil {
		resp.DisplayName = user.DisplayName
		resp.PreferredLevel = string(domain.LevelBeginner)
		resp.FavoriteTopics = []string{}
		resp.CreatedAt = user.CreatedAt
		return resp
	}
	resp.DisplayName = profile.DisplayName
	resp.PreferredLevel = string(profile.PreferredLevel)
	resp.TotalLessonsCompleted = profile.TotalLessonsCompleted
	resp.TotalQuizzesTaken = profile.TotalQuizzesTaken
	resp.AverageQuizScore = profile.AverageQuizScore
	resp.CurrentStreak = profile.CurrentStreak
	resp.LongestStreak = profile.LongestStreak
	resp.LastActivityDate = profile.LastActivityDate
	resp.FavoriteTopics = profile.FavoriteTopics
	resp.TopicPerformance = profile.TopicPerformance
	resp.Settings = ProfileSettings{
		Dialect:              profile.Settings.Dialect,
		Difficulty:           profile.Settings.Difficulty,
		TransliterationStyle: profile.Settings.TransliterationStyle,
		DailyGoalMinutes:     profile.Settings.DailyGoalMinutes,
	}
	resp.CreatedAt = profile.CreatedAt
	if resp.FavoriteTopics == nil {
		resp.FavoriteTopics = []string{}
	}
	return resp
}

// UpdateProfileRequest represents a partial profile update. Nil fields are
// left unchanged.
// @Description Request body for updating the user profile
type UpdateProfileRequest struct {
	DisplayName    *string          `json:"display_name,omitempty"`
	PreferredLevel *string          `json:"preferred_level,omitempty"`
	Settings       *ProfileSettings `json:"settings,omitempty"`
}

// --- User Quiz Attempts DTOs ---

// AttemptFilters defines parameters for filtering lists of quiz attempts.
// These are typically query parameters.
type AttemptFilters struct {
	LessonID  string `query:"lesson_id"`  // Restrict to one lesson
	StartDate string `query:"start_date"` // Format: YYYY-MM-DD
	EndDate   string `query:"end_date"`   // Format: YYYY-MM-DD
}

// UserQuizAttemptItem represents a single quiz attempt in a list.
type UserQuizAttemptItem struct {
	AttemptID        string    `json:"attempt_id"`
	QuizID           string    `json:"quiz_id"`
	LessonID         string    `json:"lesson_id"`
	Score            float64   `json:"score"`
	Grade            string    `json:"grade"`
	TotalQuestions   int       `json:"total_questions"`
	CorrectAnswers   int       `json:"correct_answers"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	CompletedAt      time.Time `json:"completed_at"`
}

// NewUserQuizAttemptItem maps a persisted attempt onto its list item.
func NewUserQuizAttemptItem(attempt *domain.QuizAttempt) UserQuizAttemptItem {
	return UserQuizAttemptItem{
		AttemptID:        attempt.ID,
		QuizID:           attempt.QuizID,
		LessonID:         attempt.LessonID,
		Score:            attempt.Score,
		Grade:            domain.GradeForScore(attempt.Score),
		TotalQuestions:   attempt.TotalQuestions,
		CorrectAnswers:   attempt.CorrectAnswers,
		TimeTakenSeconds: attempt.TimeTakenSeconds,
		CompletedAt:      attempt.CompletedAt,
	}
}

// UserQuizAttemptsResponse is the response for listing user quiz attempts.
type UserQuizAttemptsResponse struct {
	Attempts       []UserQuizAttemptItem `json:"attempts"`
	PaginationInfo PaginationInfo        `json:"pagination_info"`
}

// UserErrorsResponse summarizes a user's recorded evaluation errors by
// category.
type UserErrorsResponse struct {
	Counts      map[string]int `json:"counts"`
	TotalErrors int            `json:"total_errors"`
}
