package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"leblingo/internal/domain"
	"leblingo/internal/repository/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
)

// setupTestDB creates a new sqlx.DB instance and sqlmock for repository
// testing.
func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	return sqlxDB, mock
}

func lessonRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "topic", "level", "en_text", "la_text", "metadata", "created_at", "updated_at", "deleted_at"})
}

func TestToDomainLesson(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	modelLesson := &models.Lesson{
		ID:        "lesson1",
		Topic:     "food",
		Level:     "beginner",
		EnText:    "I went to the market.",
		LaText:    "re7et 3al souk.",
		Metadata:  models.JSONMap{"seed": "abc"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	domainLesson := toDomainLesson(modelLesson)
	assert.NotNil(t, domainLesson)
	assert.Equal(t, modelLesson.ID, domainLesson.ID)
	assert.Equal(t, modelLesson.Topic, domainLesson.Topic)
	assert.Equal(t, domain.LevelBeginner, domainLesson.Level)
	assert.Equal(t, modelLesson.EnText, domainLesson.EnText)
	assert.Equal(t, modelLesson.LaText, domainLesson.LaText)
	assert.Equal(t, "abc", domainLesson.Metadata["seed"])
	assert.True(t, modelLesson.CreatedAt.Equal(domainLesson.CreatedAt))

	assert.Nil(t, toDomainLesson(nil))
}

func TestFromDomainLesson(t *testing.T) {
	domainLesson := &domain.Lesson{
		ID:     "lesson1",
		Topic:  "travel",
		Level:  domain.LevelIntermediate,
		EnText: "Where is the airport?",
		LaText: "wen el matar?",
	}

	modelLesson := fromDomainLesson(domainLesson)
	assert.NotNil(t, modelLesson)
	assert.Equal(t, "lesson1", modelLesson.ID)
	assert.Equal(t, "intermediate", modelLesson.Level)
	assert.Equal(t, domainLesson.EnText, modelLesson.EnText)

	assert.Nil(t, fromDomainLesson(nil))
}

func TestSQLXLessonRepository_GetLessonByID_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXLessonRepository(db)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.|\n)+ FROM lessons(.|\n)+WHERE id = :1`).
		WithArgs("lesson-id").
		WillReturnRows(lessonRows().AddRow("lesson-id", "food", "beginner", "en", "la", `{"seed":"x"}`, now, now, nil))

	lesson, err := repo.GetLessonByID(context.Background(), "lesson-id")

	assert.NoError(t, err)
	assert.NotNil(t, lesson)
	assert.Equal(t, "lesson-id", lesson.ID)
	assert.Equal(t, "food", lesson.Topic)
	assert.Equal(t, "x", lesson.Metadata["seed"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLXLessonRepository_GetLessonByID_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXLessonRepository(db)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.|\n)+ FROM lessons(.|\n)+WHERE id = :1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	lesson, err := repo.GetLessonByID(context.Background(), "missing")

	assert.NoError(t, err, "not found is not an error")
	assert.Nil(t, lesson)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLXLessonRepository_CreateLesson_New(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXLessonRepository(db)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.|\n)+ FROM lessons(.|\n)+WHERE topic = :1`).
		WithArgs("food", lessonTextHash("New story.")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO lessons`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	lesson := &domain.Lesson{
		Topic:  "food",
		Level:  domain.LevelBeginner,
		EnText: "New story.",
		LaText: "2ossa jdide.",
	}
	err := repo.CreateLesson(context.Background(), lesson)

	assert.NoError(t, err)
	assert.NotEmpty(t, lesson.ID, "an ID should have been assigned")
	assert.False(t, lesson.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLXLessonRepository_CreateLesson_DuplicateReturnsExisting(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXLessonRepository(db)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.|\n)+ FROM lessons(.|\n)+WHERE topic = :1`).
		WithArgs("food", lessonTextHash("Same story.")).
		WillReturnRows(lessonRows().AddRow("existing-id", "food", "beginner", "Same story.", "nafs el 2ossa.", "{}", now, now, nil))

	lesson := &domain.Lesson{
		Topic:  "food",
		Level:  domain.LevelBeginner,
		EnText: "Same story.",
		LaText: "different text that is discarded",
	}
	err := repo.CreateLesson(context.Background(), lesson)

	assert.NoError(t, err)
	assert.Equal(t, "existing-id", lesson.ID, "the existing lesson should be returned")
	assert.Equal(t, "nafs el 2ossa.", lesson.LaText)
	assert.NoError(t, mock.ExpectationsWereMet(), "no INSERT should have been issued")
}

func TestSQLXLessonRepository_ListLessons(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXLessonRepository(db)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM lessons`).
		WithArgs("food").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT (.|\n)+ FROM lessons(.|\n)+ORDER BY created_at DESC`).
		WithArgs("food", 0, 2).
		WillReturnRows(lessonRows().
			AddRow("l1", "food", "beginner", "en1", "la1", "{}", now, now, nil).
			AddRow("l2", "food", "advanced", "en2", "la2", "{}", now, now, nil))

	lessons, total, err := repo.ListLessons(context.Background(), "food", "", 2, 0)

	assert.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, lessons, 2)
	assert.Equal(t, "l1", lessons[0].ID)
	assert.Equal(t, domain.LevelAdvanced, lessons[1].Level)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLXLessonRepository_GetRandomLessonByTopic_QueryError(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXLessonRepository(db)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.|\n)+ FROM lessons(.|\n)+DBMS_RANDOM`).
		WithArgs("travel").
		WillReturnError(errors.New("ORA-12170: connect timeout"))

	lesson, err := repo.GetRandomLessonByTopic(context.Background(), "travel")

	assert.Error(t, err)
	assert.Nil(t, lesson)
	assert.Contains(t, err.Error(), "failed to get random lesson")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New("ORA-00001: unique constraint (LEBLINGO.UQ_LESSONS_TOPIC_TEXT) violated")))
	assert.False(t, isUniqueViolation(errors.New("ORA-12170: connect timeout")))
	assert.False(t, isUniqueViolation(nil))
}

func TestLessonTextHash(t *testing.T) {
	assert.Len(t, lessonTextHash("I went to the market."), 32)
	assert.Equal(t, lessonTextHash("same"), lessonTextHash("same"))
	assert.NotEqual(t, lessonTextHash("one"), lessonTextHash("two"))
}
