package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"time"
)

// UserLessonProgress represents a row of the user_lesson_progress table.
// One row exists per (user, lesson) pair.
type UserLessonProgress struct {
	ID                 string       `db:"id"`                  // ULID
	UserID             string       `db:"user_id"`             // Foreign key to users table
	LessonID           string       `db:"lesson_id"`           // Foreign key to lessons table
	Status             string       `db:"status"`              // not_started, in_progress or completed
	LessonViews        int          `db:"lesson_views"`        // How often the lesson was opened
	TranslationToggles int          `db:"translation_toggles"` // How often the translation was revealed
	QuizTaken          bool         `db:"quiz_taken"`          // Whether any quiz attempt exists
	QuizScore          float64      `db:"quiz_score"`          // Most recent quiz score
	QuizAttempts       int          `db:"quiz_attempts"`       // Number of quiz attempts
	BestQuizScore      float64      `db:"best_quiz_score"`     // Best quiz score so far
	TimeSpentMinutes   int          `db:"time_spent_minutes"`  // Estimated study time
	CompletionDate     sql.NullTime `db:"completion_date"`     // When the lesson was completed, if it was
	LastAccessed       time.Time    `db:"last_accessed"`       // Timestamp of last interaction
	CreatedAt          time.Time    `db:"created_at"`          // Timestamp of record creation
	UpdatedAt          time.Time    `db:"updated_at"`          // Timestamp of last update
}

// ResponseModel is the persisted JSON shape of a single quiz response.
type ResponseModel struct {
	QuestionIndex int       `json:"question_index"`
	QuestionType  string    `json:"question_type"`
	ChoiceIndex   *int      `json:"choice_index,omitempty"`
	Text          *string   `json:"text,omitempty"`
	Blanks        []string  `json:"blanks,omitempty"`
	IsCorrect     bool      `json:"is_correct"`
	Timestamp     time.Time `json:"timestamp"`
}

// ResponseSlice stores a response array as a JSON document in a CLOB column.
type ResponseSlice []ResponseModel

// Value implements the driver.Valuer interface.
func (r ResponseSlice) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	jsonData, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface.
func (r *ResponseSlice) Scan(value interface{}) error {
	bytesToParse, err := clobBytes("ResponseSlice", value)
	if err != nil {
		return err
	}
	if bytesToParse == nil {
		*r = ResponseSlice{}
		return nil
	}
	return json.Unmarshal(bytesToParse, r)
}

// QuizAttempt represents a row of the quiz_attempts table.
type QuizAttempt struct {
	ID                 string         `db:"id"`                  // ULID
	UserID             string         `db:"user_id"`             // Foreign key to users table
	LessonID           string         `db:"lesson_id"`           // Foreign key to lessons table
	QuizID             string         `db:"quiz_id"`             // Foreign key to quizzes table
	Responses          ResponseSlice  `db:"responses"`           // Per-question responses, JSON CLOB
	Score              float64        `db:"score"`               // Fraction of correct answers
	TotalQuestions     int            `db:"total_questions"`     // Question count at attempt time
	CorrectAnswers     int            `db:"correct_answers"`     // Correct response count
	MCQCorrect         int            `db:"mcq_correct"`         // Per-type counters for analytics
	MCQTotal           int            `db:"mcq_total"`           //
	TranslationCorrect int            `db:"translation_correct"` //
	TranslationTotal   int            `db:"translation_total"`   //
	FillBlankCorrect   int            `db:"fill_blank_correct"`  //
	FillBlankTotal     int            `db:"fill_blank_total"`    //
	StartedAt          time.Time      `db:"started_at"`          // When the session was started
	CompletedAt        time.Time      `db:"completed_at"`        // When the session was completed
	TimeTakenSeconds   int            `db:"time_taken_seconds"`  // CompletedAt minus StartedAt
	Evaluation         sql.NullString `db:"evaluation"`          // Full evaluation result, JSON CLOB
	CreatedAt          time.Time      `db:"created_at"`          // Timestamp of record creation
	UpdatedAt          time.Time      `db:"updated_at"`          // Timestamp of last update
	DeletedAt          sql.NullTime   `db:"deleted_at"`          // Timestamp of soft deletion, if applicable
}

// ErrorRecord represents a row of the error_records table.
type ErrorRecord struct {
	ID            string         `db:"id"`             // ULID
	UserID        string         `db:"user_id"`        // Foreign key to users table
	LessonID      sql.NullString `db:"lesson_id"`      // Lesson the error occurred in, if known
	QuizID        sql.NullString `db:"quiz_id"`        // Quiz the error occurred in, if known
	QuestionIndex int            `db:"question_index"` // Question position within the quiz
	ErrorType     string         `db:"error_type"`     // Classified error type
	Token         sql.NullString `db:"token"`          // Offending token, if one was identified
	Details       JSONMap        `db:"details"`        // Extra context such as the hint, JSON CLOB
	CreatedAt     time.Time      `db:"created_at"`     // Timestamp of record creation
}

// ProgressSnapshot represents a row of the progress_snapshots table.
type ProgressSnapshot struct {
	ID         string    `db:"id"`          // ULID
	UserID     string    `db:"user_id"`     // Foreign key to users table
	PeriodDays int       `db:"period_days"` // Length of the summarized period
	Metrics    JSONMap   `db:"metrics"`     // Computed period metrics, JSON CLOB
	ComputedAt time.Time `db:"computed_at"` // When the metrics were computed
}
