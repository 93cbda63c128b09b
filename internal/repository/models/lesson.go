package models

import (
	"database/sql"
	"time"
)

// Lesson represents a row of the lessons table.
type Lesson struct {
	ID         string       `db:"id"`           // ULID
	Topic      string       `db:"topic"`        // Topic the lesson belongs to
	Level      string       `db:"level"`        // beginner, intermediate or advanced
	EnText     string       `db:"en_text"`      // English story text
	LaText     string       `db:"la_text"`      // Lebanese Arabic transliteration
	EnTextHash string       `db:"en_text_hash"` // MD5 of en_text; CLOBs cannot carry a unique constraint
	Metadata   JSONMap      `db:"metadata"`     // Free-form generation metadata, JSON CLOB
	CreatedAt  time.Time    `db:"created_at"`   // Timestamp of record creation
	UpdatedAt  time.Time    `db:"updated_at"`   // Timestamp of last update
	DeletedAt  sql.NullTime `db:"deleted_at"`   // Timestamp of soft deletion, if applicable
}
