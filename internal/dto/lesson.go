package dto

import (
	"time"

	"leblingo/internal/domain"
)

// StoryRequest represents the request body for generating a lesson story.
// @Description Request body for generating a bilingual lesson
type StoryRequest struct {
	Topic string `json:"topic" validate:"required"`
	Level string `json:"level"` // beginner, intermediate or advanced; defaults to beginner
	Seed  string `json:"seed,omitempty"`
}

// LessonResponse represents a lesson in the API response
// @Description Bilingual lesson content
type LessonResponse struct {
	LessonID  string                 `json:"lesson_id"`
	Topic     string                 `json:"topic"`
	Level     string                 `json:"level"`
	EnText    string                 `json:"en_text"`
	LaText    string                 `json:"la_text"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewLessonResponse maps a domain lesson onto the wire shape.
func NewLessonResponse(lesson *domain.Lesson) *LessonResponse {
	return &LessonResponse{
		LessonID:  lesson.ID,
		Topic:     lesson.Topic,
		Level:     string(lesson.Level),
		EnText:    lesson.EnText,
		LaText:    lesson.LaText,
		Meta:      lesson.Metadata,
		CreatedAt: lesson.CreatedAt,
	}
}

// LessonFilters defines parameters for filtering lesson lists.
// These are typically query parameters.
type LessonFilters struct {
	Topic string `query:"topic"`
	Level string `query:"level"`
}

// LessonListResponse is the response for listing lessons.
type LessonListResponse struct {
	Lessons        []LessonResponse `json:"lessons"`
	PaginationInfo PaginationInfo   `json:"pagination_info"`
}

// TopicsResponse lists the distinct topics lessons exist for.
type TopicsResponse struct {
	Topics []string `json:"topics"`
}
