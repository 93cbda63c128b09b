package domain

import (
	"context"
	"time"
)

// LessonRepository defines the interface for lesson persistence.
type LessonRepository interface {
	// CreateLesson persists a new lesson. When a lesson with the same topic
	// and english text already exists, the existing lesson is copied into
	// the argument instead of inserting a duplicate.
	CreateLesson(ctx context.Context, lesson *Lesson) error

	// GetLessonByID retrieves a lesson by its ID.
	GetLessonByID(ctx context.Context, id string) (*Lesson, error)

	// GetLessonByTopicAndText retrieves the lesson matching a (topic, english
	// text) pair, which is unique.
	GetLessonByTopicAndText(ctx context.Context, topic, enText string) (*Lesson, error)

	// GetRandomLessonByTopic returns one random lesson for a topic, any level.
	GetRandomLessonByTopic(ctx context.Context, topic string) (*Lesson, error)

	// ListLessons returns a page of lessons filtered by topic and level.
	// Empty filter values match everything. The second return value is the
	// total count before pagination.
	ListLessons(ctx context.Context, topic string, level Level, limit, offset int) ([]Lesson, int, error)

	// ListLessonsUpdatedSince returns lessons changed after the given time.
	ListLessonsUpdatedSince(ctx context.Context, since time.Time, limit int) ([]Lesson, error)

	// ListTopics returns the distinct topics that have at least one lesson.
	ListTopics(ctx context.Context) ([]string, error)

	// MapLessonTopics returns the topic of each of the given lessons, keyed
	// by lesson ID. Unknown IDs are simply absent from the result.
	MapLessonTopics(ctx context.Context, lessonIDs []string) (map[string]string, error)
}

// QuizRepository defines the interface for quiz persistence.
type QuizRepository interface {
	// CreateQuiz persists a new quiz.
	CreateQuiz(ctx context.Context, quiz *Quiz) error

	// GetQuizByID retrieves a quiz by its ID.
	GetQuizByID(ctx context.Context, id string) (*Quiz, error)

	// GetQuizByLessonID retrieves the most recent quiz for a lesson.
	GetQuizByLessonID(ctx context.Context, lessonID string) (*Quiz, error)

	// ListQuizzesUpdatedSince returns quizzes changed after the given time.
	ListQuizzesUpdatedSince(ctx context.Context, since time.Time, limit int) ([]Quiz, error)
}

// ProfileRepository defines the interface for user profile persistence.
type ProfileRepository interface {
	// GetProfile retrieves a user's profile.
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)

	// UpsertProfile inserts the profile or updates it when one already
	// exists for the user.
	UpsertProfile(ctx context.Context, profile *UserProfile) error
}

// ProgressRepository defines the interface for per-lesson progress and
// progress snapshot persistence.
type ProgressRepository interface {
	// UpsertLessonProgress inserts the progress row or updates the existing
	// one. At most one row exists per (user, lesson) pair.
	UpsertLessonProgress(ctx context.Context, progress *UserLessonProgress) error

	// GetLessonProgress retrieves one user's progress on one lesson.
	GetLessonProgress(ctx context.Context, userID, lessonID string) (*UserLessonProgress, error)

	// ListLessonProgress returns all progress rows for a user.
	ListLessonProgress(ctx context.Context, userID string) ([]UserLessonProgress, error)

	// ListProgressUpdatedSince returns a user's progress rows changed after
	// the given time.
	ListProgressUpdatedSince(ctx context.Context, userID string, since time.Time, limit int) ([]UserLessonProgress, error)

	// SaveSnapshot persists a computed metrics snapshot.
	SaveSnapshot(ctx context.Context, snapshot *ProgressSnapshot) error

	// GetLatestSnapshot returns the most recent snapshot for a user and
	// period, or nil when none exists.
	GetLatestSnapshot(ctx context.Context, userID string, periodDays int) (*ProgressSnapshot, error)

	// ListSnapshotsSince returns a user's snapshots computed after the
	// given time.
	ListSnapshotsSince(ctx context.Context, userID string, since time.Time) ([]ProgressSnapshot, error)
}

// AttemptRepository defines the interface for quiz attempt and error record
// persistence.
type AttemptRepository interface {
	// CreateAttempt persists a completed quiz attempt.
	CreateAttempt(ctx context.Context, attempt *QuizAttempt) error

	// CreateErrorRecords persists a batch of error records.
	CreateErrorRecords(ctx context.Context, records []ErrorRecord) error

	// ListAttemptsByUser returns a page of a user's attempts, newest first.
	// The second return value is the total count before pagination.
	ListAttemptsByUser(ctx context.Context, userID string, limit, offset int) ([]QuizAttempt, int, error)

	// ListAttemptsByQuiz returns a user's attempts on one quiz, newest first.
	ListAttemptsByQuiz(ctx context.Context, userID, quizID string) ([]QuizAttempt, error)

	// ListAttemptsSince returns a user's attempts completed after the given
	// time, oldest first.
	ListAttemptsSince(ctx context.Context, userID string, since time.Time) ([]QuizAttempt, error)

	// CountAttemptTotals returns a user's all-time attempt count and the
	// number of distinct lessons attempted.
	CountAttemptTotals(ctx context.Context, userID string) (int, int, error)

	// CountErrorsByType returns how many error records of each type a user
	// accumulated after the given time.
	CountErrorsByType(ctx context.Context, userID string, since time.Time) (map[ErrorType]int, error)

	// ListErrorsSince returns a user's error records created after the given
	// time, oldest first.
	ListErrorsSince(ctx context.Context, userID string, since time.Time) ([]ErrorRecord, error)
}
