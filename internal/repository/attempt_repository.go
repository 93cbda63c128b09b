package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leblingo/internal/domain"
	"leblingo/internal/repository/models"
	"leblingo/internal/util"

	"github.com/jmoiron/sqlx"
)

// attemptColumns lists every quiz_attempts column with a quoted lowercase
// alias so result names match the model's db tags.
const attemptColumns = `
	id "id",
	user_id "user_id",
	lesson_id "lesson_id",
	quiz_id "quiz_id",
	responses "responses",
	score "score",
	total_questions "total_questions",
	correct_answers "correct_answers",
	mcq_correct "mcq_correct",
	mcq_total "mcq_total",
	translation_correct "translation_correct",
	translation_total "translation_total",
	fill_blank_correct "fill_blank_correct",
	fill_blank_total "fill_blank_total",
	started_at "started_at",
	completed_at "completed_at",
	time_taken_seconds "time_taken_seconds",
	evaluation "evaluation",
	created_at "created_at",
	updated_at "updated_at",
	deleted_at "deleted_at"`

const errorRecordColumns = `
	id "id",
	user_id "user_id",
	lesson_id "lesson_id",
	quiz_id "quiz_id",
	question_index "question_index",
	error_type "error_type",
	token "token",
	details "details",
	created_at "created_at"`

// sqlxAttemptRepository implements domain.AttemptRepository using sqlx.
type sqlxAttemptRepository struct {
	db *sqlx.DB
}

// NewSQLXAttemptRepository creates a new instance of sqlxAttemptRepository.
func NewSQLXAttemptRepository(db *sqlx.DB) domain.AttemptRepository {
	return &sqlxAttemptRepository{db: db}
}

// toModelResponse flattens the answer union into the persisted shape.
func toModelResponse(d domain.QuizResponse) models.ResponseModel {
	m := models.ResponseModel{
		QuestionIndex: d.QuestionIndex,
		QuestionType:  string(d.QuestionType),
		IsCorrect:     d.IsCorrect,
		Timestamp:     d.Timestamp,
	}
	switch answer := d.Answer.(type) {
	case domain.ChoiceAnswer:
		choice := int(answer)
		m.ChoiceIndex = &choice
	case domain.TextAnswer:
		text := string(answer)
		m.Text = &text
	case domain.BlankAnswer:
		m.Blanks = []string(answer)
	}
	return m
}

// toDomainResponse rebuilds the answer union from the persisted shape.
func toDomainResponse(m models.ResponseModel) domain.QuizResponse {
	d := domain.QuizResponse{
		QuestionIndex: m.QuestionIndex,
		QuestionType:  domain.QuestionType(m.QuestionType),
		IsCorrect:     m.IsCorrect,
		Timestamp:     m.Timestamp,
	}
	switch {
	case m.ChoiceIndex != nil:
		d.Answer = domain.ChoiceAnswer(*m.ChoiceIndex)
	case m.Text != nil:
		d.Answer = domain.TextAnswer(*m.Text)
	case m.Blanks != nil:
		d.Answer = domain.BlankAnswer(m.Blanks)
	}
	return d
}

func fromDomainQuizAttempt(d *domain.QuizAttempt) (*models.QuizAttempt, error) {
	if d == nil {
		return nil, fmt.Errorf("cannot map nil attempt")
	}

	responses := make(models.ResponseSlice, 0, len(d.Responses))
	for _, resp := range d.Responses {
		responses = append(responses, toModelResponse(resp))
	}

	var evaluation string
	if d.Evaluation != nil {
		evaluationJSON, err := json.Marshal(d.Evaluation)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal attempt evaluation: %w", err)
		}
		evaluation = string(evaluationJSON)
	}

	return &models.QuizAttempt{
		ID:                 d.ID,
		UserID:             d.UserID,
		LessonID:           d.LessonID,
		QuizID:             d.QuizID,
		Responses:          responses,
		Score:              d.Score,
		TotalQuestions:     d.TotalQuestions,
		CorrectAnswers:     d.CorrectAnswers,
		MCQCorrect:         d.MCQCorrect,
		MCQTotal:           d.MCQTotal,
		TranslationCorrect: d.TranslationCorrect,
		TranslationTotal:   d.TranslationTotal,
		FillBlankCorrect:   d.FillBlankCorrect,
		FillBlankTotal:     d.FillBlankTotal,
		StartedAt:          d.StartedAt,
		CompletedAt:        d.CompletedAt,
		TimeTakenSeconds:   d.TimeTakenSeconds,
		Evaluation:         util.StringToNullString(evaluation),
	}, nil
}

func toDomainQuizAttempt(m *models.QuizAttempt) *domain.QuizAttempt {
	if m == nil {
		return nil
	}

	responses := make([]domain.QuizResponse, 0, len(m.Responses))
	for _, resp := range m.Responses {
		responses = append(responses, toDomainResponse(resp))
	}

	var evaluation *domain.EvaluationResult
	if m.Evaluation.Valid && m.Evaluation.String != "" {
		var result domain.EvaluationResult
		// A corrupt evaluation document degrades to a nil evaluation rather
		// than failing the whole attempt read.
		if err := json.Unmarshal([]byte(m.Evaluation.String), &result); err == nil {
			evaluation = &result
		}
	}

	return &domain.QuizAttempt{
		ID:                 m.ID,
		UserID:             m.UserID,
		LessonID:           m.LessonID,
		QuizID:             m.QuizID,
		Responses:          responses,
		Score:              m.Score,
		TotalQuestions:     m.TotalQuestions,
		CorrectAnswers:     m.CorrectAnswers,
		MCQCorrect:         m.MCQCorrect,
		MCQTotal:           m.MCQTotal,
		TranslationCorrect: m.TranslationCorrect,
		TranslationTotal:   m.TranslationTotal,
		FillBlankCorrect:   m.FillBlankCorrect,
		FillBlankTotal:     m.FillBlankTotal,
		StartedAt:          m.StartedAt,
		CompletedAt:        m.CompletedAt,
		TimeTakenSeconds:   m.TimeTakenSeconds,
		Evaluation:         evaluation,
	}
}

func fromDomainErrorRecord(d *domain.ErrorRecord) *models.ErrorRecord {
	if d == nil {
		return nil
	}
	return &models.ErrorRecord{
		ID:            d.ID,
		UserID:        d.UserID,
		LessonID:      util.StringToNullString(d.LessonID),
		QuizID:        util.StringToNullString(d.QuizID),
		QuestionIndex: d.QuestionIndex,
		ErrorType:     string(d.ErrorType),
		Token:         util.StringToNullString(d.Token),
		Details:       models.JSONMap(d.Details),
		CreatedAt:     d.CreatedAt,
	}
}

func toDomainErrorRecord(m *models.ErrorRecord) *domain.ErrorRecord {
	if m == nil {
		return nil
	}
	return &domain.ErrorRecord{
		ID:            m.ID,
		UserID:        m.UserID,
		LessonID:      m.LessonID.String,
		QuizID:        m.QuizID.String,
		QuestionIndex: m.QuestionIndex,
		ErrorType:     domain.ErrorType(m.ErrorType),
		Token:         m.Token.String,
		Details:       map[string]interface{}(m.Details),
		CreatedAt:     m.CreatedAt,
	}
}

// CreateAttempt persists a completed quiz attempt.
func (r *sqlxAttemptRepository) CreateAttempt(ctx context.Context, attempt *domain.QuizAttempt) error {
	modelAttempt, err := fromDomainQuizAttempt(attempt)
	if err != nil {
		return err
	}

	if modelAttempt.ID == "" {
		modelAttempt.ID = util.NewULID()
	}
	if modelAttempt.CompletedAt.IsZero() {
		modelAttempt.CompletedAt = time.Now()
	}
	modelAttempt.CreatedAt = time.Now()
	modelAttempt.UpdatedAt = time.Now()

	query := `INSERT INTO quiz_attempts (id, user_id, lesson_id, quiz_id, responses, score, total_questions, correct_answers, mcq_correct, mcq_total, translation_correct, translation_total, fill_blank_correct, fill_blank_total, started_at, completed_at, time_taken_seconds, evaluation, created_at, updated_at)
	          VALUES (:id, :user_id, :lesson_id, :quiz_id, :responses, :score, :total_questions, :correct_answers, :mcq_correct, :mcq_total, :translation_correct, :translation_total, :fill_blank_correct, :fill_blank_total, :started_at, :completed_at, :time_taken_seconds, :evaluation, :created_at, :updated_at)`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.NamedExecContext(ctx, query, modelAttempt); err != nil {
		return fmt.Errorf("failed to create quiz attempt: %w", err)
	}

	attempt.ID = modelAttempt.ID
	attempt.CompletedAt = modelAttempt.CompletedAt
	return nil
}

// CreateErrorRecords persists a batch of error records.
func (r *sqlxAttemptRepository) CreateErrorRecords(ctx context.Context, records []domain.ErrorRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `INSERT INTO error_records (id, user_id, lesson_id, quiz_id, question_index, error_type, token, details, created_at)
	          VALUES (:id, :user_id, :lesson_id, :quiz_id, :question_index, :error_type, :token, :details, :created_at)`

	executor := GetExecutor(ctx, r.db)
	for i := range records {
		modelRecord := fromDomainErrorRecord(&records[i])
		if modelRecord.ID == "" {
			modelRecord.ID = util.NewULID()
		}
		if modelRecord.CreatedAt.IsZero() {
			modelRecord.CreatedAt = time.Now()
		}

		if _, err := executor.NamedExecContext(ctx, query, modelRecord); err != nil {
			return fmt.Errorf("failed to create error record %d of %d: %w", i+1, len(records), err)
		}
		records[i].ID = modelRecord.ID
		records[i].CreatedAt = modelRecord.CreatedAt
	}
	return nil
}

// ListAttemptsByUser returns a page of a user's attempts, newest first,
// along with the total count before pagination.
func (r *sqlxAttemptRepository) ListAttemptsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.QuizAttempt, int, error) {
	executor := GetExecutor(ctx, r.db)

	var total int
	countQuery := `SELECT COUNT(*) FROM quiz_attempts WHERE user_id = :1 AND deleted_at IS NULL`
	if err := executor.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	query := `SELECT ` + attemptColumns + `
	FROM quiz_attempts
	WHERE user_id = :1
	AND deleted_at IS NULL
	ORDER BY completed_at DESC
	OFFSET :2 ROWS FETCH NEXT :3 ROWS ONLY`

	var modelAttempts []models.QuizAttempt
	if err := executor.SelectContext(ctx, &modelAttempts, query, userID, offset, limit); err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	attempts := make([]domain.QuizAttempt, 0, len(modelAttempts))
	for i := range modelAttempts {
		attempts = append(attempts, *toDomainQuizAttempt(&modelAttempts[i]))
	}
	return attempts, total, nil
}

// ListAttemptsByQuiz returns a user's attempts on one quiz, newest first.
func (r *sqlxAttemptRepository) ListAttemptsByQuiz(ctx context.Context, userID, quizID string) ([]domain.QuizAttempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM quiz_attempts
	WHERE user_id = :1
	AND quiz_id = :2
	AND deleted_at IS NULL
	ORDER BY completed_at DESC`

	executor := GetExecutor(ctx, r.db)
	var modelAttempts []models.QuizAttempt
	if err := executor.SelectContext(ctx, &modelAttempts, query, userID, quizID); err != nil {
		return nil, fmt.Errorf("failed to list attempts for quiz %s: %w", quizID, err)
	}

	attempts := make([]domain.QuizAttempt, 0, len(modelAttempts))
	for i := range modelAttempts {
		attempts = append(attempts, *toDomainQuizAttempt(&modelAttempts[i]))
	}
	return attempts, nil
}

// ListAttemptsSince returns a user's attempts completed after the given
// time, oldest first.
func (r *sqlxAttemptRepository) ListAttemptsSince(ctx context.Context, userID string, since time.Time) ([]domain.QuizAttempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM quiz_attempts
	WHERE user_id = :1
	AND completed_at > :2
	AND deleted_at IS NULL
	ORDER BY completed_at ASC`

	executor := GetExecutor(ctx, r.db)
	var modelAttempts []models.QuizAttempt
	if err := executor.SelectContext(ctx, &modelAttempts, query, userID, since); err != nil {
		return nil, fmt.Errorf("failed to list attempts since %s: %w", since, err)
	}

	attempts := make([]domain.QuizAttempt, 0, len(modelAttempts))
	for i := range modelAttempts {
		attempts = append(attempts, *toDomainQuizAttempt(&modelAttempts[i]))
	}
	return attempts, nil
}

// CountErrorsByType returns how many error records of each type a user
// accumulated after the given time.
// CountAttemptTotals returns how many attempts a user has made overall and
// how many distinct lessons those attempts cover.
func (r *sqlxAttemptRepository) CountAttemptTotals(ctx context.Context, userID string) (int, int, error) {
	query := `SELECT COUNT(*) "attempts", COUNT(DISTINCT lesson_id) "lessons"
	FROM quiz_attempts
	WHERE user_id = :1
	AND deleted_at IS NULL`

	executor := GetExecutor(ctx, r.db)
	var row struct {
		Attempts int `db:"attempts"`
		Lessons  int `db:"lessons"`
	}
	if err := executor.GetContext(ctx, &row, query, userID); err != nil {
		return 0, 0, fmt.Errorf("failed to count attempt totals: %w", err)
	}
	return row.Attempts, row.Lessons, nil
}

func (r *sqlxAttemptRepository) CountErrorsByType(ctx context.Context, userID string, since time.Time) (map[domain.ErrorType]int, error) {
	query := `SELECT error_type "error_type", COUNT(*) "total"
	FROM error_records
	WHERE user_id = :1
	AND created_at > :2
	GROUP BY error_type`

	executor := GetExecutor(ctx, r.db)
	var rows []struct {
		ErrorType string `db:"error_type"`
		Total     int    `db:"total"`
	}
	if err := executor.SelectContext(ctx, &rows, query, userID, since); err != nil {
		return nil, fmt.Errorf("failed to count errors by type: %w", err)
	}

	counts := make(map[domain.ErrorType]int, len(rows))
	for _, row := range rows {
		counts[domain.ErrorType(row.ErrorType)] = row.Total
	}
	return counts, nil
}

// ListErrorsSince returns a user's error records created after the given
// time, oldest first.
func (r *sqlxAttemptRepository) ListErrorsSince(ctx context.Context, userID string, since time.Time) ([]domain.ErrorRecord, error) {
	query := `SELECT ` + errorRecordColumns + `
	FROM error_records
	WHERE user_id = :1
	AND created_at > :2
	ORDER BY created_at ASC`

	executor := GetExecutor(ctx, r.db)
	var modelRecords []models.ErrorRecord
	if err := executor.SelectContext(ctx, &modelRecords, query, userID, since); err != nil {
		return nil, fmt.Errorf("failed to list errors since %s: %w", since, err)
	}

	records := make([]domain.ErrorRecord, 0, len(modelRecords))
	for i := range modelRecords {
		records = append(records, *toDomainErrorRecord(&modelRecords[i]))
	}
	return records, nil
}
