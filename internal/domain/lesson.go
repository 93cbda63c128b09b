package domain

import (
	"strings"
	"time"
)

// Level identifies the proficiency level a lesson or quiz targets.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// ParseLevel normalizes a level string. Unknown values fall back to beginner.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelIntermediate:
		return LevelIntermediate
	case LevelAdvanced:
		return LevelAdvanced
	default:
		return LevelBeginner
	}
}

// IsValidLevel reports whether s names one of the supported levels.
func IsValidLevel(s string) bool {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// Lesson is a unit of bilingual instructional content: an English story and
// its Lebanese-Arabic transliteration.
type Lesson struct {
	ID        string
	Topic     string
	Level     Level
	EnText    string
	LaText    string
	Metadata  map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLesson creates a new Lesson instance
func NewLesson(topic string, level Level, enText, laText string, metadata map[string]interface{}) *Lesson {
	now := time.Now()
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &Lesson{
		Topic:     topic,
		Level:     level,
		EnText:    enText,
		LaText:    laText,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate validates the lesson
func (l *Lesson) Validate() error {
	if strings.TrimSpace(l.Topic) == "" {
		return NewInvalidInputError("topic is required")
	}
	if !IsValidLevel(string(l.Level)) {
		return NewInvalidInputError("level must be beginner, intermediate or advanced")
	}
	if strings.TrimSpace(l.EnText) == "" {
		return NewInvalidInputError("english text is required")
	}
	if strings.TrimSpace(l.LaText) == "" {
		return NewInvalidInputError("lebanese text is required")
	}
	return nil
}

// HasBothTexts reports whether the lesson carries both language sides,
// which quiz generation requires.
func (l *Lesson) HasBothTexts() bool {
	return strings.TrimSpace(l.EnText) != "" && strings.TrimSpace(l.LaText) != ""
}
