package repository

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"leblingo/internal/domain"
	"leblingo/internal/repository/models"
	"leblingo/internal/util"

	"github.com/jmoiron/sqlx"
)

// lessonColumns lists every lessons column with a quoted lowercase alias so
// result names match the model's db tags regardless of Oracle's identifier
// casing. The level column is stored as lesson_level because LEVEL is a
// reserved word in Oracle.
const lessonColumns = `
	id "id",
	topic "topic",
	lesson_level "level",
	en_text "en_text",
	la_text "la_text",
	metadata "metadata",
	created_at "created_at",
	updated_at "updated_at",
	deleted_at "deleted_at"`

// sqlxLessonRepository implements domain.LessonRepository using sqlx.
type sqlxLessonRepository struct {
	db *sqlx.DB
}

// NewSQLXLessonRepository creates a new instance of sqlxLessonRepository.
func NewSQLXLessonRepository(db *sqlx.DB) domain.LessonRepository {
	return &sqlxLessonRepository{db: db}
}

func toDomainLesson(m *models.Lesson) *domain.Lesson {
	if m == nil {
		return nil
	}
	return &domain.Lesson{
		ID:        m.ID,
		Topic:     m.Topic,
		Level:     domain.Level(m.Level),
		EnText:    m.EnText,
		LaText:    m.LaText,
		Metadata:  map[string]interface{}(m.Metadata),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func fromDomainLesson(d *domain.Lesson) *models.Lesson {
	if d == nil {
		return nil
	}
	return &models.Lesson{
		ID:        d.ID,
		Topic:     d.Topic,
		Level:     string(d.Level),
		EnText:    d.EnText,
		LaText:    d.LaText,
		Metadata:  models.JSONMap(d.Metadata),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// isUniqueViolation reports whether err is an Oracle unique constraint
// violation (ORA-00001).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ORA-00001")
}

// lessonTextHash is the dedup key for a lesson's english text. The lessons
// table carries it in a separate column because Oracle cannot enforce
// uniqueness on a CLOB.
func lessonTextHash(enText string) string {
	sum := md5.Sum([]byte(enText))
	return hex.EncodeToString(sum[:])
}

// CreateLesson inserts a new lesson. Lessons are unique per (topic, en_text);
// when a duplicate arrives, either found up front or via the unique
// constraint under a concurrent insert, the existing lesson is copied into
// the argument and no error is returned.
func (r *sqlxLessonRepository) CreateLesson(ctx context.Context, lesson *domain.Lesson) error {
	if lesson == nil {
		return fmt.Errorf("cannot create nil lesson")
	}

	existing, err := r.GetLessonByTopicAndText(ctx, lesson.Topic, lesson.EnText)
	if err != nil {
		return err
	}
	if existing != nil {
		*lesson = *existing
		return nil
	}

	modelLesson := fromDomainLesson(lesson)
	if modelLesson.ID == "" {
		modelLesson.ID = util.NewULID()
	}
	if modelLesson.CreatedAt.IsZero() {
		modelLesson.CreatedAt = time.Now()
	}
	modelLesson.UpdatedAt = time.Now()
	modelLesson.EnTextHash = lessonTextHash(modelLesson.EnText)

	query := `INSERT INTO lessons (id, topic, lesson_level, en_text, la_text, en_text_hash, metadata, created_at, updated_at)
	          VALUES (:id, :topic, :level, :en_text, :la_text, :en_text_hash, :metadata, :created_at, :updated_at)`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.NamedExecContext(ctx, query, modelLesson); err != nil {
		if isUniqueViolation(err) {
			existing, getErr := r.GetLessonByTopicAndText(ctx, lesson.Topic, lesson.EnText)
			if getErr == nil && existing != nil {
				*lesson = *existing
				return nil
			}
		}
		return fmt.Errorf("failed to create lesson: %w", err)
	}

	lesson.ID = modelLesson.ID
	lesson.CreatedAt = modelLesson.CreatedAt
	lesson.UpdatedAt = modelLesson.UpdatedAt
	return nil
}

// GetLessonByID retrieves a lesson by its ID.
func (r *sqlxLessonRepository) GetLessonByID(ctx context.Context, id string) (*domain.Lesson, error) {
	var modelLesson models.Lesson
	query := `SELECT ` + lessonColumns + `
	FROM lessons
	WHERE id = :1
	AND deleted_at IS NULL`

	executor := GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &modelLesson, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lesson by id %s: %w", id, err)
	}
	return toDomainLesson(&modelLesson), nil
}

// GetLessonByTopicAndText retrieves the lesson matching a (topic, en_text)
// pair.
func (r *sqlxLessonRepository) GetLessonByTopicAndText(ctx context.Context, topic, enText string) (*domain.Lesson, error) {
	var modelLesson models.Lesson
	query := `SELECT ` + lessonColumns + `
	FROM lessons
	WHERE topic = :1
	AND en_text_hash = :2
	AND deleted_at IS NULL`

	executor := GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &modelLesson, query, topic, lessonTextHash(enText))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lesson by topic and text: %w", err)
	}
	return toDomainLesson(&modelLesson), nil
}

// GetRandomLessonByTopic returns one random lesson for the topic.
func (r *sqlxLessonRepository) GetRandomLessonByTopic(ctx context.Context, topic string) (*domain.Lesson, error) {
	var modelLesson models.Lesson
	query := `SELECT ` + lessonColumns + `
	FROM lessons
	WHERE topic = :1
	AND deleted_at IS NULL
	ORDER BY DBMS_RANDOM.VALUE
	FETCH FIRST 1 ROWS ONLY`

	executor := GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &modelLesson, query, topic)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get random lesson for topic %s: %w", topic, err)
	}
	return toDomainLesson(&modelLesson), nil
}

// ListLessons returns a page of lessons filtered by topic and level, newest
// first, along with the total count before pagination.
func (r *sqlxLessonRepository) ListLessons(ctx context.Context, topic string, level domain.Level, limit, offset int) ([]domain.Lesson, int, error) {
	var whereClauses []string
	var args []interface{}
	argIndex := 1

	whereClauses = append(whereClauses, "deleted_at IS NULL")
	if topic != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("topic = :%d", argIndex))
		args = append(args, topic)
		argIndex++
	}
	if level != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("lesson_level = :%d", argIndex))
		args = append(args, string(level))
		argIndex++
	}
	where := strings.Join(whereClauses, " AND ")

	executor := GetExecutor(ctx, r.db)

	var total int
	countQuery := `SELECT COUNT(*) FROM lessons WHERE ` + where
	if err := executor.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count lessons: %w", err)
	}

	query := `SELECT ` + lessonColumns + `
	FROM lessons
	WHERE ` + where + `
	ORDER BY created_at DESC
	OFFSET :` + fmt.Sprint(argIndex) + ` ROWS FETCH NEXT :` + fmt.Sprint(argIndex+1) + ` ROWS ONLY`
	args = append(args, offset, limit)

	var modelLessons []models.Lesson
	if err := executor.SelectContext(ctx, &modelLessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list lessons: %w", err)
	}

	lessons := make([]domain.Lesson, 0, len(modelLessons))
	for i := range modelLessons {
		lessons = append(lessons, *toDomainLesson(&modelLessons[i]))
	}
	return lessons, total, nil
}

// ListLessonsUpdatedSince returns lessons changed after the given time,
// oldest first, capped at limit rows.
func (r *sqlxLessonRepository) ListLessonsUpdatedSince(ctx context.Context, since time.Time, limit int) ([]domain.Lesson, error) {
	query := `SELECT ` + lessonColumns + `
	FROM lessons
	WHERE updated_at > :1
	AND deleted_at IS NULL
	ORDER BY updated_at ASC
	FETCH FIRST :2 ROWS ONLY`

	executor := GetExecutor(ctx, r.db)
	var modelLessons []models.Lesson
	if err := executor.SelectContext(ctx, &modelLessons, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to list lessons updated since %s: %w", since, err)
	}

	lessons := make([]domain.Lesson, 0, len(modelLessons))
	for i := range modelLessons {
		lessons = append(lessons, *toDomainLesson(&modelLessons[i]))
	}
	return lessons, nil
}

// ListTopics returns the distinct topics that have at least one lesson.
func (r *sqlxLessonRepository) ListTopics(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT topic "topic" FROM lessons WHERE deleted_at IS NULL ORDER BY topic`

	executor := GetExecutor(ctx, r.db)
	var topics []string
	if err := executor.SelectContext(ctx, &topics, query); err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// MapLessonTopics returns the topic of each of the given lessons, keyed by
// lesson ID. Oracle caps IN lists at 1000 entries, so the IDs are looked up
// in chunks.
func (r *sqlxLessonRepository) MapLessonTopics(ctx context.Context, lessonIDs []string) (map[string]string, error) {
	topics := make(map[string]string, len(lessonIDs))
	if len(lessonIDs) == 0 {
		return topics, nil
	}

	executor := GetExecutor(ctx, r.db)
	const chunkSize = 500
	for start := 0; start < len(lessonIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(lessonIDs) {
			end = len(lessonIDs)
		}
		chunk := lessonIDs[start:end]

		placeholders := make([]string, len(chunk))
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			placeholders[i] = fmt.Sprintf(":%d", i+1)
			args[i] = id
		}

		query := `SELECT id "id", topic "topic"
		FROM lessons
		WHERE id IN (` + strings.Join(placeholders, ",") + `)
		AND deleted_at IS NULL`

		var rows []struct {
			ID    string `db:"id"`
			Topic string `db:"topic"`
		}
		if err := executor.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("failed to map lesson topics: %w", err)
		}
		for _, row := range rows {
			topics[row.ID] = row.Topic
		}
	}
	return topics, nil
}
