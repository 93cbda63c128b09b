package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"time"
)

// QuestionModel is the persisted JSON shape of a single quiz question.
type QuestionModel struct {
	Type         string   `json:"type"`
	Question     string   `json:"question"`
	Choices      []string `json:"choices,omitempty"`
	AnswerIndex  int      `json:"answer_index,omitempty"`
	AnswerText   string   `json:"answer_text,omitempty"`
	AnswerBlanks []string `json:"answer_blanks,omitempty"`
	Rationale    string   `json:"rationale,omitempty"`
}

// QuestionSlice stores a question array as a JSON document in a CLOB column.
type QuestionSlice []QuestionModel

// Value implements the driver.Valuer interface.
func (q QuestionSlice) Value() (driver.Value, error) {
	if q == nil {
		return "[]", nil
	}
	jsonData, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface.
func (q *QuestionSlice) Scan(value interface{}) error {
	bytesToParse, err := clobBytes("QuestionSlice", value)
	if err != nil {
		return err
	}
	if bytesToParse == nil {
		*q = QuestionSlice{}
		return nil
	}
	return json.Unmarshal(bytesToParse, q)
}

// Quiz represents a row of the quizzes table.
type Quiz struct {
	ID        string        `db:"id"`         // ULID
	LessonID  string        `db:"lesson_id"`  // Foreign key to lessons table
	Questions QuestionSlice `db:"questions"`  // Question array, JSON CLOB
	Metadata  JSONMap       `db:"metadata"`   // Free-form generation metadata, JSON CLOB
	CreatedAt time.Time     `db:"created_at"` // Timestamp of record creation
	UpdatedAt time.Time     `db:"updated_at"` // Timestamp of last update
	DeletedAt sql.NullTime  `db:"deleted_at"` // Timestamp of soft deletion, if applicable
}
