package dto

import (
	"time"

	"leblingo/internal/domain"
)

// UpdateProgressRequest represents an explicit progress update for a lesson.
// @Description Request body for updating lesson progress
type UpdateProgressRequest struct {
	Status           string `json:"status,omitempty"` // not_started, in_progress or completed
	TimeSpentMinutes int    `json:"time_spent_minutes,omitempty"`
}

// LessonProgressResponse represents a user's progress on one lesson.
type LessonProgressResponse struct {
	LessonID           string     `json:"lesson_id"`
	Status             string     `json:"status"`
	LessonViews        int        `json:"lesson_views"`
	TranslationToggles int        `json:"translation_toggles"`
	QuizTaken          bool       `json:"quiz_taken"`
	QuizScore          float64    `json:"quiz_score"`
	QuizAttempts       int        `json:"quiz_attempts"`
	BestQuizScore      float64    `json:"best_quiz_score"`
	TimeSpentMinutes   int        `json:"time_spent_minutes"`
	CompletionDate     *time.Time `json:"completion_date,omitempty"`
	LastAccessed       time.Time  `json:"last_accessed"`
}

// NewLessonProgressResponse maps a progress record onto the wire shape.
func NewLessonProgressResponse(p *domain.UserLessonProgress) *LessonProgressResponse {
	return &LessonProgressResponse{
		LessonID:           p.LessonID,
		Status:             string(p.Status),
		LessonViews:        p.LessonViews,
		TranslationToggles: p.TranslationToggles,
		QuizTaken:          p.QuizTaken,
		QuizScore:          p.QuizScore,
		QuizAttempts:       p.QuizAttempts,
		BestQuizScore:      p.BestQuizScore,
		TimeSpentMinutes:   p.TimeSpentMinutes,
		CompletionDate:     p.CompletionDate,
		LastAccessed:       p.LastAccessed,
	}
}

// ProgressSummaryResponse aggregates study metrics over a period alongside
// all-time totals.
// @Description Study metrics for a recent period
type ProgressSummaryResponse struct {
	PeriodDays            int            `json:"period_days"`
	Accuracy              float64        `json:"accuracy"`
	StudyTimeMinutes      int            `json:"study_time_minutes"`
	LessonsStudied        int            `json:"lessons_studied"`
	QuizzesTaken          int            `json:"quizzes_taken"`
	ErrorCounts           map[string]int `json:"error_counts"`
	ImprovementAreas      []string       `json:"improvement_areas"`
	CurrentStreak         int            `json:"current_streak"`
	TotalStudyTimeMinutes int            `json:"total_study_time_minutes"`
	TotalLessonsStudied   int            `json:"total_lessons_studied"`
	MostCommonErrors      []ErrorCount   `json:"most_common_errors"`
}

// TrendPoint is one day's activity in a trend series.
type TrendPoint struct {
	Date             string  `json:"date"` // YYYY-MM-DD
	Accuracy         float64 `json:"accuracy"`
	QuizzesTaken     int     `json:"quizzes_taken"`
	LessonsStudied   int     `json:"lessons_studied"`
	StudyTimeMinutes int     `json:"study_time_minutes"`
	Errors           int     `json:"errors"`
}

// TrendsResponse is a zero-filled daily series, oldest first.
// @Description Daily study trends over a period
type TrendsResponse struct {
	PeriodDays      int          `json:"period_days"`
	Points          []TrendPoint `json:"points"`
	ImprovementRate float64      `json:"improvement_rate"`
}

// RecentActivityItem is one recently touched lesson on the dashboard.
type RecentActivityItem struct {
	LessonID         string    `json:"lesson_id"`
	Status           string    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
	TimeSpentMinutes int       `json:"time_spent_minutes"`
}

// TopicProgress summarizes a user's standing on one topic.
type TopicProgress struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
	AverageScore   float64 `json:"average_score"`
}

// DashboardResponse is the main progress overview.
// @Description Progress dashboard with totals, streaks and per-topic standing
type DashboardResponse struct {
	TotalLessonsCompleted int                      `json:"total_lessons_completed"`
	TotalQuizzesTaken     int                      `json:"total_quizzes_taken"`
	AverageQuizScore      float64                  `json:"average_quiz_score"`
	CurrentStreak         int                      `json:"current_streak"`
	LongestStreak         int                      `json:"longest_streak"`
	LessonsThisWeek       int                      `json:"lessons_this_week"`
	RecentActivity        []RecentActivityItem     `json:"recent_activity"`
	TopicProgress         map[string]TopicProgress `json:"topic_progress"`
}

// TypePerformance is per-question-type accuracy.
type TypePerformance struct {
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

// ErrorCount pairs an error category with its frequency.
type ErrorCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// RecommendationItem is one study recommendation.
type RecommendationItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"` // medium or high
	Action      string `json:"action"`
	ErrorType   string `json:"error_type,omitempty"`
}

// DailyActivityItem is one day's lesson engagement.
type DailyActivityItem struct {
	Date             string `json:"date"` // YYYY-MM-DD
	LessonsAccessed  int    `json:"lessons_accessed"`
	LessonsCompleted int    `json:"lessons_completed"`
	TimeSpentMinutes int    `json:"time_spent_minutes"`
}

// AnalyticsResponse is the detailed learning analytics view.
// @Description Learning analytics over a period
type AnalyticsResponse struct {
	PeriodDays              int                        `json:"period_days"`
	LessonsAccessed         int                        `json:"lessons_accessed"`
	LessonsCompleted        int                        `json:"lessons_completed"`
	StudyTimeMinutes        int                        `json:"study_time_minutes"`
	QuizAttempts            int                        `json:"quiz_attempts"`
	AverageQuizScore        float64                    `json:"average_quiz_score"`
	LearningVelocity        float64                    `json:"learning_velocity"` // lessons completed per day
	AverageViewsPerLesson   float64                    `json:"average_views_per_lesson"`
	AverageTogglesPerLesson float64                    `json:"average_toggles_per_lesson"`
	QuestionTypePerformance map[string]TypePerformance `json:"question_type_performance"`
	DailyActivity           []DailyActivityItem        `json:"daily_activity"`
	MostCommonErrors        []ErrorCount               `json:"most_common_errors"`
	Recommendations         []RecommendationItem       `json:"recommendations"`
}
