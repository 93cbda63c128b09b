package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"leblingo/internal/domain"
	"leblingo/internal/logger"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// quizTemperature is kept low so questions stay anchored to the lesson text.
const quizTemperature = 0.3

// questionsPerQuiz is how many questions the model is asked for. The minimum
// accepted after validation is domain.MinQuizQuestions.
const questionsPerQuiz = 4

type quizGenerator struct {
	model llms.Model
}

// NewQuizGenerator creates a quiz generator backed by the given model.
func NewQuizGenerator(model llms.Model) domain.QuizGenerator {
	return &quizGenerator{model: model}
}

// rawQuestion mirrors one element of the model's JSON array.
type rawQuestion struct {
	Type         string   `json:"type"`
	Question     string   `json:"question"`
	Choices      []string `json:"choices"`
	AnswerIndex  int      `json:"answer_index"`
	AnswerText   string   `json:"answer_text"`
	AnswerBlanks []string `json:"answer_blanks"`
	Rationale    string   `json:"rationale"`
}

// GenerateQuiz produces quiz questions grounded in the lesson's two texts.
// Questions that fail validation are dropped; the call errors only when
// fewer than domain.MinQuizQuestions survive.
func (g *quizGenerator) GenerateQuiz(ctx context.Context, lesson *domain.Lesson) ([]domain.QuizQuestion, error) {
	l := logger.Get()

	if lesson == nil || !lesson.HasBothTexts() {
		return nil, domain.NewInvalidInputError("lesson must have both english and arabic texts")
	}

	l.Info("Generating quiz with LLM",
		zap.String("lesson_id", lesson.ID),
		zap.String("topic", lesson.Topic))

	prompt := fmt.Sprintf(`You are a Lebanese Arabic language tutor. Create exactly %d quiz questions from this lesson:

English: %s
Lebanese Arabic (Latin script): %s

Make 2 "mcq" questions, 1 "translation" question and 1 "fill_blank" question.

Respond with ONLY a JSON array. Each element must follow this format:
{
    "type": "mcq" | "translation" | "fill_blank",
    "question": "the question text",
    "choices": ["only for mcq, 3-4 options"],
    "answer_index": 0,
    "answer_text": "only for translation: the expected Lebanese Arabic answer",
    "answer_blanks": ["only for fill_blank: the missing words in order"],
    "rationale": "one sentence explaining the answer"
}

Rules:
1. Every question must be answerable from the lesson text alone.
2. For fill_blank, put ___ in the question where each missing word goes.
3. All Lebanese Arabic must stay in Latin script.`,
		questionsPerQuiz, lesson.EnText, lesson.LaText)

	rawResponse, err := callModel(ctx, g.model, prompt, quizTemperature)
	if err != nil {
		return nil, domain.NewLLMServiceError(fmt.Errorf("quiz generation call failed: %w", err))
	}

	extracted, err := extractJSON(rawResponse)
	if err != nil {
		l.Error("Could not locate JSON in quiz response",
			zap.Error(err),
			zap.String("raw_response", rawResponse))
		return nil, domain.NewLLMServiceError(err)
	}

	if err := validateQuizPayload([]byte(extracted)); err != nil {
		l.Error("Quiz payload failed schema validation",
			zap.Error(err),
			zap.String("json_string_tried_to_parse", extracted))
		return nil, domain.NewLLMServiceError(fmt.Errorf("quiz payload rejected: %w", err))
	}

	var rawQuestions []rawQuestion
	if err := json.Unmarshal([]byte(extracted), &rawQuestions); err != nil {
		return nil, domain.NewLLMServiceError(fmt.Errorf("failed to unmarshal quiz JSON: %w", err))
	}

	questions := make([]domain.QuizQuestion, 0, len(rawQuestions))
	for _, rq := range rawQuestions {
		questionType, ok := domain.ParseQuestionType(rq.Type)
		if !ok {
			l.Warn("Dropping question with unknown type", zap.String("type", rq.Type))
			continue
		}
		question := domain.QuizQuestion{
			Type:         questionType,
			Question:     rq.Question,
			Choices:      rq.Choices,
			AnswerIndex:  rq.AnswerIndex,
			AnswerText:   rq.AnswerText,
			AnswerBlanks: rq.AnswerBlanks,
			Rationale:    rq.Rationale,
		}
		if err := question.Validate(); err != nil {
			l.Warn("Dropping malformed question",
				zap.Error(err),
				zap.String("question", rq.Question))
			continue
		}
		questions = append(questions, question)
	}

	if len(questions) < domain.MinQuizQuestions {
		return nil, domain.NewLLMServiceError(fmt.Errorf(
			"model produced %d usable questions, need at least %d", len(questions), domain.MinQuizQuestions))
	}

	l.Info("Quiz generated", zap.Int("questions", len(questions)))
	return questions, nil
}

var _ domain.QuizGenerator = (*quizGenerator)(nil)
