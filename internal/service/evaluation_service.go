package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"leblingo/internal/cache"
	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/logger"
	"leblingo/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// EvaluationService grades completed quiz responses. Evaluation itself is
// side-effect free; attempts and error records are persisted only for
// authenticated learners.
type EvaluationService interface {
	// EvaluateResponses grades a set of responses against a quiz. Unanswered
	// questions count as incorrect. When userID is non-empty the attempt,
	// its error records and the learner's progress are persisted.
	EvaluateResponses(ctx context.Context, userID string, quiz *domain.Quiz, responses []domain.QuizResponse, startedAt time.Time) (*domain.EvaluationResult, error)

	// EvaluateAttempt grades a directly submitted answer set for a quiz,
	// without a session.
	EvaluateAttempt(ctx context.Context, userID, quizID string, req *dto.AttemptRequest) (*dto.EvaluationResponse, error)
}

type evaluationServiceImpl struct {
	quizRepo    domain.QuizRepository
	attemptRepo domain.AttemptRepository
	judge       domain.TranslationJudge
	embeddings  domain.EmbeddingService
	judgments   TranslationJudgmentCache
	progress    ProgressService
	txManager   domain.TransactionManager
	cacheImpl   domain.Cache
	group       singleflight.Group
	resultTTL   time.Duration
}

// NewEvaluationService creates a new instance of EvaluationService.
// embeddings, judgments, progress and cacheImpl may each be nil; the
// pipeline then skips the corresponding shortcut or side effect.
func NewEvaluationService(
	quizRepo domain.QuizRepository,
	attemptRepo domain.AttemptRepository,
	judge domain.TranslationJudge,
	embeddings domain.EmbeddingService,
	judgments TranslationJudgmentCache,
	progress ProgressService,
	txManager domain.TransactionManager,
	cacheImpl domain.Cache,
	cfg *config.Config,
) EvaluationService {
	return &evaluationServiceImpl{
		quizRepo:    quizRepo,
		attemptRepo: attemptRepo,
		judge:       judge,
		embeddings:  embeddings,
		judgments:   judgments,
		progress:    progress,
		txManager:   txManager,
		cacheImpl:   cacheImpl,
		resultTTL:   cfg.ParseTTLStringOrDefault(cfg.CacheTTLs.AnswerEvaluation, 24*time.Hour),
	}
}

func (s *evaluationServiceImpl) EvaluateResponses(ctx context.Context, userID string, quiz *domain.Quiz, responses []domain.QuizResponse, startedAt time.Time) (*domain.EvaluationResult, error) {
	if quiz == nil || len(quiz.Questions) == 0 {
		return nil, domain.NewInvalidInputError("quiz with questions is required for evaluation")
	}

	// Identical answer sets share one cached result; singleflight keeps
	// concurrent identical submissions from each paying for LLM judging.
	key := cache.EvaluationKey(quiz.ID, answersDigest(responses))
	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		if cached := s.cachedResult(ctx, key); cached != nil {
			return cached, nil
		}
		result := s.evaluate(ctx, quiz, responses)
		s.cacheResult(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	result := value.(*domain.EvaluationResult)

	if userID != "" {
		if err := s.persistAttempt(ctx, userID, quiz, responses, result, startedAt); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *evaluationServiceImpl) EvaluateAttempt(ctx context.Context, userID, quizID string, req *dto.AttemptRequest) (*dto.EvaluationResponse, error) {
	if len(req.Responses) == 0 {
		return nil, domain.NewInvalidInputError("at least one response is required")
	}

	quiz, err := s.quizRepo.GetQuizByID(ctx, quizID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to load quiz", err)
	}
	if quiz == nil {
		return nil, domain.NewQuizNotFoundError(quizID)
	}

	now := time.Now()
	responses := make([]domain.QuizResponse, 0, len(req.Responses))
	for _, input := range req.Responses {
		if input.QuestionIndex < 0 || input.QuestionIndex >= quiz.QuestionCount() {
			return nil, domain.NewInvalidInputError(fmt.Sprintf("question index %d is out of range", input.QuestionIndex))
		}
		answer := input.ToUserAnswer()
		if answer == nil {
			return nil, domain.NewInvalidInputError(fmt.Sprintf("response for question %d has no answer value", input.QuestionIndex))
		}
		question := quiz.Questions[input.QuestionIndex]
		responses = append(responses, domain.QuizResponse{
			QuestionIndex: input.QuestionIndex,
			QuestionType:  question.Type,
			Answer:        answer,
			IsCorrect:     question.IsCorrect(answer),
			Timestamp:     now,
		})
	}

	result, err := s.EvaluateResponses(ctx, userID, quiz, responses, now)
	if err != nil {
		return nil, err
	}
	return dto.NewEvaluationResponse(result), nil
}

// evaluate walks every question of the quiz and produces one feedback entry
// per question, in question order.
func (s *evaluationServiceImpl) evaluate(ctx context.Context, quiz *domain.Quiz, responses []domain.QuizResponse) *domain.EvaluationResult {
	byIndex := make(map[int]domain.QuizResponse, len(responses))
	for _, r := range responses {
		byIndex[r.QuestionIndex] = r
	}

	feedback := make([]domain.QuestionFeedback, 0, len(quiz.Questions))
	correct := 0
	for i := range quiz.Questions {
		question := &quiz.Questions[i]

		var fb domain.QuestionFeedback
		response, answered := byIndex[i]
		if !answered || response.Answer == nil {
			fb = domain.QuestionFeedback{
				QuestionIndex: i,
				Errors:        []domain.ErrorAnnotation{},
				Suggestion:    "This question was not answered",
				Confidence:    1.0,
			}
		} else {
			switch question.Type {
			case domain.QuestionTypeMCQ:
				fb = evaluateMCQ(i, question, response.Answer)
			case domain.QuestionTypeFillBlank:
				fb = evaluateFillBlank(i, question, response.Answer)
			default:
				fb = s.evaluateTranslation(ctx, quiz.ID, i, question, response.Answer)
			}
		}

		if fb.IsCorrect {
			correct++
		}
		feedback = append(feedback, fb)
	}

	score := float64(correct) / float64(len(quiz.Questions))
	return &domain.EvaluationResult{
		Score:           score,
		Feedback:        feedback,
		OverallFeedback: domain.OverallFeedbackForScore(score),
	}
}

// evaluateMCQ grades a choice question. A text answer holding a number is
// accepted; anything else is an invalid answer rather than a wrong one.
func evaluateMCQ(index int, question *domain.QuizQuestion, answer domain.UserAnswer) domain.QuestionFeedback {
	choice, parsed := parseChoice(answer)
	if !parsed || choice < 0 || choice >= len(question.Choices) {
		return domain.QuestionFeedback{
			QuestionIndex: index,
			Errors: []domain.ErrorAnnotation{{
				Type:     domain.ErrorTypeInvalidAnswer,
				Token:    answerString(answer),
				Hint:     "Invalid choice",
				Severity: domain.SeverityMedium,
			}},
			Suggestion: "Please select a valid option",
			Confidence: 1.0,
		}
	}
	if choice != question.AnswerIndex {
		return domain.QuestionFeedback{
			QuestionIndex: index,
			Errors:        []domain.ErrorAnnotation{},
			Suggestion:    fmt.Sprintf("The correct answer is '%s'", question.Choices[question.AnswerIndex]),
			Confidence:    1.0,
		}
	}
	return domain.QuestionFeedback{
		QuestionIndex: index,
		IsCorrect:     true,
		Errors:        []domain.ErrorAnnotation{},
		Confidence:    1.0,
	}
}

// evaluateFillBlank grades a fill-blank question. AnswerBlanks holds the
// accepted alternatives, so the answer is correct when it matches any one
// of them after trimming and lowercasing. Wrong non-empty answers still get
// heuristic annotations so the learner sees what went off.
func evaluateFillBlank(index int, question *domain.QuizQuestion, answer domain.UserAnswer) domain.QuestionFeedback {
	tokens := blankTokens(answer)
	joined := strings.ToLower(strings.TrimSpace(strings.Join(tokens, " ")))
	for _, accepted := range question.AnswerBlanks {
		if joined == strings.ToLower(strings.TrimSpace(accepted)) {
			return domain.QuestionFeedback{
				QuestionIndex: index,
				IsCorrect:     true,
				Errors:        []domain.ErrorAnnotation{},
				Confidence:    0.8,
			}
		}
	}

	annotations := []domain.ErrorAnnotation{}
	if joined != "" && len(question.AnswerBlanks) > 0 {
		annotations = heuristicAnnotations(joined, question.AnswerBlanks[0])
	}
	return domain.QuestionFeedback{
		QuestionIndex: index,
		Errors:        annotations,
		Suggestion:    "Expected: " + strings.Join(question.AnswerBlanks, " or "),
		Confidence:    0.8,
	}
}

// evaluateTranslation combines the lexical heuristics with the LLM judge.
// The judge has the final word on correctness unless a heuristic found a
// high-severity error.
func (s *evaluationServiceImpl) evaluateTranslation(ctx context.Context, quizID string, index int, question *domain.QuizQuestion, answer domain.UserAnswer) domain.QuestionFeedback {
	text := answerString(answer)
	heuristic := heuristicAnnotations(text, question.AnswerText)
	judgment := s.judgeWithReuse(ctx, quizID, index, question, text)

	annotations := domain.DedupeAnnotations(append(heuristic, judgment.Errors...))
	return domain.QuestionFeedback{
		QuestionIndex: index,
		IsCorrect:     judgment.IsCorrect && !domain.HasHighSeverity(heuristic),
		Errors:        annotations,
		Suggestion:    judgment.Suggestion,
		Confidence:    judgment.Confidence,
	}
}

// judgeWithReuse checks the judgment cache for a semantically similar
// already-judged answer before asking the model, and feeds fresh verdicts
// back into the cache.
func (s *evaluationServiceImpl) judgeWithReuse(ctx context.Context, quizID string, index int, question *domain.QuizQuestion, text string) *domain.TranslationJudgment {
	var embedding []float32
	if s.embeddings != nil {
		generated, err := s.embeddings.Generate(ctx, text)
		if err != nil {
			logger.Get().Warn("Answer embedding failed, judging without reuse",
				zap.Error(err),
				zap.String("quizID", quizID))
		} else {
			embedding = generated
		}
	}

	if s.judgments != nil && len(embedding) > 0 {
		cached, err := s.judgments.Get(ctx, quizID, index, embedding, text)
		if err == nil && cached != nil {
			return cached
		}
	}

	judgment, err := s.judge.JudgeTranslation(ctx, question.Question, question.AnswerText, text)
	if err != nil || judgment == nil {
		logger.Get().Error("Translation judge failed, scoring by strict comparison",
			zap.Error(err),
			zap.String("quizID", quizID),
			zap.Int("questionIndex", index))
		judgment = &domain.TranslationJudgment{
			IsCorrect:  question.IsCorrect(domain.TextAnswer(text)),
			Confidence: 0.5,
		}
	}

	if s.judgments != nil && len(embedding) > 0 {
		if err := s.judgments.Put(ctx, quizID, index, text, embedding, judgment); err != nil {
			logger.Get().Warn("Failed to cache translation judgment", zap.Error(err))
		}
	}
	return judgment
}

// persistAttempt records the attempt, its error annotations and the
// learner's progress. The attempt and its error records go in one
// transaction; a progress update failure is logged but does not void the
// evaluation.
func (s *evaluationServiceImpl) persistAttempt(ctx context.Context, userID string, quiz *domain.Quiz, responses []domain.QuizResponse, result *domain.EvaluationResult, startedAt time.Time) error {
	if s.attemptRepo == nil || s.txManager == nil {
		return nil
	}

	verdictByIndex := make(map[int]bool, len(result.Feedback))
	for _, fb := range result.Feedback {
		verdictByIndex[fb.QuestionIndex] = fb.IsCorrect
	}
	evaluated := make([]domain.QuizResponse, len(responses))
	copy(evaluated, responses)
	for i := range evaluated {
		evaluated[i].IsCorrect = verdictByIndex[evaluated[i].QuestionIndex]
	}

	attempt := domain.NewQuizAttempt(userID, quiz, evaluated, result.Score, startedAt)
	attempt.ID = util.NewULID()
	attempt.Evaluation = result

	now := time.Now()
	var records []domain.ErrorRecord
	for _, fb := range result.Feedback {
		for _, e := range fb.Errors {
			records = append(records, domain.ErrorRecord{
				ID:            util.NewULID(),
				UserID:        userID,
				LessonID:      quiz.LessonID,
				QuizID:        quiz.ID,
				QuestionIndex: fb.QuestionIndex,
				ErrorType:     e.Type,
				Token:         e.Token,
				Details: map[string]interface{}{
					"hint":     e.Hint,
					"severity": string(e.Severity),
				},
				CreatedAt: now,
			})
		}
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.attemptRepo.CreateAttempt(txCtx, attempt); err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return s.attemptRepo.CreateErrorRecords(txCtx, records)
	})
	if err != nil {
		return domain.NewDatabaseError("failed to persist quiz attempt", err)
	}

	if s.progress != nil {
		if err := s.progress.RecordQuizAttempt(ctx, userID, attempt); err != nil {
			logger.Get().Warn("Failed to update progress after attempt",
				zap.Error(err),
				zap.String("userID", userID),
				zap.String("quizID", quiz.ID))
		}
	}
	return nil
}

func (s *evaluationServiceImpl) cachedResult(ctx context.Context, key string) *domain.EvaluationResult {
	if s.cacheImpl == nil {
		return nil
	}
	raw, err := s.cacheImpl.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Warn("Evaluation cache read failed", zap.Error(err), zap.String("key", key))
		}
		return nil
	}
	var result domain.EvaluationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil
	}
	return &result
}

func (s *evaluationServiceImpl) cacheResult(ctx context.Context, key string, result *domain.EvaluationResult) {
	if s.cacheImpl == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cacheImpl.Set(ctx, key, string(raw), s.resultTTL); err != nil {
		logger.Get().Warn("Evaluation cache write failed", zap.Error(err), zap.String("key", key))
	}
}

// answersDigest folds every response into a stable digest so identical
// answer sets map onto one evaluation cache key.
func answersDigest(responses []domain.QuizResponse) string {
	params := make(map[string]string, len(responses))
	for _, r := range responses {
		params[strconv.Itoa(r.QuestionIndex)] = digestValue(r.Answer)
	}
	return cache.ContentHash(params)
}

func digestValue(answer domain.UserAnswer) string {
	switch v := answer.(type) {
	case domain.ChoiceAnswer:
		return "c:" + strconv.Itoa(int(v))
	case domain.TextAnswer:
		return "t:" + strings.ToLower(strings.TrimSpace(string(v)))
	case domain.BlankAnswer:
		lowered := make([]string, len(v))
		for i, token := range v {
			lowered[i] = strings.ToLower(strings.TrimSpace(token))
		}
		return "b:" + strings.Join(lowered, "|")
	}
	return ""
}

func parseChoice(answer domain.UserAnswer) (int, bool) {
	switch v := answer.(type) {
	case domain.ChoiceAnswer:
		return int(v), true
	case domain.TextAnswer:
		parsed, err := strconv.Atoi(strings.TrimSpace(string(v)))
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

func answerString(answer domain.UserAnswer) string {
	switch v := answer.(type) {
	case domain.ChoiceAnswer:
		return strconv.Itoa(int(v))
	case domain.TextAnswer:
		return string(v)
	case domain.BlankAnswer:
		return strings.Join(v, " ")
	}
	return ""
}

func blankTokens(answer domain.UserAnswer) []string {
	switch v := answer.(type) {
	case domain.BlankAnswer:
		return v
	case domain.TextAnswer:
		return []string{string(v)}
	case domain.ChoiceAnswer:
		return []string{strconv.Itoa(int(v))}
	}
	return nil
}
