package domain

import "time"

// LessonStatus tracks where a learner stands on a lesson.
type LessonStatus string

const (
	LessonStatusNotStarted LessonStatus = "not_started"
	LessonStatusInProgress LessonStatus = "in_progress"
	LessonStatusCompleted  LessonStatus = "completed"
)

// LessonCompletionScore is the quiz score at which a lesson counts as
// completed.
const LessonCompletionScore = 0.7

// UserLessonProgress records one learner's engagement with one lesson.
// There is at most one row per (user, lesson) pair.
type UserLessonProgress struct {
	ID                 string
	UserID             string
	LessonID           string
	Status             LessonStatus
	LessonViews        int
	TranslationToggles int
	QuizTaken          bool
	QuizScore          float64
	QuizAttempts       int
	BestQuizScore      float64
	TimeSpentMinutes   int
	CompletionDate     *time.Time
	LastAccessed       time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewUserLessonProgress creates a fresh progress record in the not_started
// state.
func NewUserLessonProgress(userID, lessonID string) *UserLessonProgress {
	now := time.Now()
	return &UserLessonProgress{
		UserID:       userID,
		LessonID:     lessonID,
		Status:       LessonStatusNotStarted,
		LastAccessed: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// RecordView bumps the view counter and moves a not-started lesson into
// progress.
func (p *UserLessonProgress) RecordView() {
	p.LessonViews++
	if p.Status == LessonStatusNotStarted {
		p.Status = LessonStatusInProgress
	}
	p.LastAccessed = time.Now()
	p.UpdatedAt = p.LastAccessed
}

// RecordToggle bumps the translation toggle counter.
func (p *UserLessonProgress) RecordToggle() {
	p.TranslationToggles++
	p.LastAccessed = time.Now()
	p.UpdatedAt = p.LastAccessed
}

// RecordQuizAttempt folds a new quiz score into the record. A score at or
// above LessonCompletionScore completes the lesson.
func (p *UserLessonProgress) RecordQuizAttempt(score float64) {
	now := time.Now()
	p.QuizTaken = true
	p.QuizAttempts++
	p.QuizScore = score
	if score > p.BestQuizScore {
		p.BestQuizScore = score
	}
	if score >= LessonCompletionScore && p.Status != LessonStatusCompleted {
		p.Status = LessonStatusCompleted
		p.CompletionDate = &now
	}
	p.LastAccessed = now
	p.UpdatedAt = now
}

// QuizAttempt is one completed pass over a quiz, with per-question-type
// accounting for analytics.
type QuizAttempt struct {
	ID                 string
	UserID             string
	LessonID           string
	QuizID             string
	Responses          []QuizResponse
	Score              float64
	TotalQuestions     int
	CorrectAnswers     int
	MCQCorrect         int
	MCQTotal           int
	TranslationCorrect int
	TranslationTotal   int
	FillBlankCorrect   int
	FillBlankTotal     int
	StartedAt          time.Time
	CompletedAt        time.Time
	TimeTakenSeconds   int
	Evaluation         *EvaluationResult
}

// NewQuizAttempt builds an attempt record from a completed session's
// responses, deriving the per-type counters.
func NewQuizAttempt(userID string, quiz *Quiz, responses []QuizResponse, score float64, startedAt time.Time) *QuizAttempt {
	attempt := &QuizAttempt{
		UserID:         userID,
		LessonID:       quiz.LessonID,
		QuizID:         quiz.ID,
		Responses:      responses,
		Score:          score,
		TotalQuestions: quiz.QuestionCount(),
		StartedAt:      startedAt,
		CompletedAt:    time.Now(),
	}
	attempt.TimeTakenSeconds = int(attempt.CompletedAt.Sub(startedAt).Seconds())

	for _, q := range quiz.Questions {
		switch q.Type {
		case QuestionTypeMCQ:
			attempt.MCQTotal++
		case QuestionTypeTranslation:
			attempt.TranslationTotal++
		case QuestionTypeFillBlank:
			attempt.FillBlankTotal++
		}
	}
	for _, r := range responses {
		if !r.IsCorrect {
			continue
		}
		attempt.CorrectAnswers++
		switch r.QuestionType {
		case QuestionTypeMCQ:
			attempt.MCQCorrect++
		case QuestionTypeTranslation:
			attempt.TranslationCorrect++
		case QuestionTypeFillBlank:
			attempt.FillBlankCorrect++
		}
	}
	return attempt
}

// ErrorRecord persists one evaluation error annotation for analytics.
type ErrorRecord struct {
	ID            string
	UserID        string
	LessonID      string
	QuizID        string
	QuestionIndex int
	ErrorType     ErrorType
	Token         string
	Details       map[string]interface{}
	CreatedAt     time.Time
}

// ProgressSnapshot caches computed period metrics per user.
type ProgressSnapshot struct {
	UserID     string
	PeriodDays int
	Metrics    map[string]interface{}
	ComputedAt time.Time
}
