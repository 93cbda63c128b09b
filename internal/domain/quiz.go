package domain

import (
	"strings"
	"time"
)

// QuestionType identifies how a question is asked and answered.
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "mcq"
	QuestionTypeTranslation QuestionType = "translation"
	QuestionTypeFillBlank   QuestionType = "fill_blank"
)

// ParseQuestionType normalizes a question type string, accepting the
// "translate" alias some clients send.
func ParseQuestionType(s string) (QuestionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mcq", "multiple_choice":
		return QuestionTypeMCQ, true
	case "translation", "translate":
		return QuestionTypeTranslation, true
	case "fill_blank", "fill-blank":
		return QuestionTypeFillBlank, true
	}
	return "", false
}

// MinQuizQuestions is the smallest number of questions a valid quiz may have.
const MinQuizQuestions = 3

// UserAnswer is the value a learner submits for one question. The concrete
// type must match the question type; a mismatch is simply an incorrect
// answer, never an error.
type UserAnswer interface {
	isUserAnswer()
}

// ChoiceAnswer selects an option of a multiple-choice question by index.
type ChoiceAnswer int

// TextAnswer is a free-form translation answer.
type TextAnswer string

// BlankAnswer is the ordered token sequence for a fill-blank question.
type BlankAnswer []string

func (ChoiceAnswer) isUserAnswer() {}
func (TextAnswer) isUserAnswer()   {}
func (BlankAnswer) isUserAnswer()  {}

// QuizQuestion is an immutable question definition. Exactly one answer field
// is meaningful, matching Type.
type QuizQuestion struct {
	Type         QuestionType
	Question     string
	Choices      []string
	AnswerIndex  int
	AnswerText   string
	AnswerBlanks []string
	Rationale    string
}

// Validate checks that the answer shape matches the question type.
func (q *QuizQuestion) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return NewInvalidInputError("question text is required")
	}
	switch q.Type {
	case QuestionTypeMCQ:
		if len(q.Choices) < 2 {
			return NewInvalidInputError("mcq question requires at least 2 choices")
		}
		if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Choices) {
			return NewInvalidInputError("mcq answer index is out of range")
		}
	case QuestionTypeTranslation:
		if strings.TrimSpace(q.AnswerText) == "" {
			return NewInvalidInputError("translation question requires an answer text")
		}
	case QuestionTypeFillBlank:
		if len(q.AnswerBlanks) == 0 {
			return NewInvalidInputError("fill_blank question requires at least one answer token")
		}
	default:
		return NewInvalidInputError("unknown question type: " + string(q.Type))
	}
	return nil
}

// IsCorrect compares a submitted answer against the question's expected
// answer. Comparison is type-specific: index equality for mcq, trimmed
// case-insensitive equality for translation, and order-sensitive trimmed
// case-insensitive element-wise equality for fill-blank. An answer whose
// shape does not match the question type is incorrect.
func (q *QuizQuestion) IsCorrect(answer UserAnswer) bool {
	switch q.Type {
	case QuestionTypeMCQ:
		choice, ok := answer.(ChoiceAnswer)
		return ok && int(choice) == q.AnswerIndex
	case QuestionTypeTranslation:
		text, ok := answer.(TextAnswer)
		return ok && foldEqual(string(text), q.AnswerText)
	case QuestionTypeFillBlank:
		blanks, ok := answer.(BlankAnswer)
		if !ok || len(blanks) != len(q.AnswerBlanks) {
			return false
		}
		for i, token := range blanks {
			if !foldEqual(token, q.AnswerBlanks[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func foldEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Quiz is an ordered set of questions tied to a lesson.
type Quiz struct {
	ID        string
	LessonID  string
	Questions []QuizQuestion
	Metadata  map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewQuiz creates a new Quiz instance
func NewQuiz(lessonID string, questions []QuizQuestion, metadata map[string]interface{}) *Quiz {
	now := time.Now()
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &Quiz{
		LessonID:  lessonID,
		Questions: questions,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate validates the quiz
func (q *Quiz) Validate() error {
	if q.LessonID == "" {
		return NewInvalidInputError("lesson ID is required")
	}
	if len(q.Questions) < MinQuizQuestions {
		return NewInvalidInputError("quiz requires at least 3 questions")
	}
	for i := range q.Questions {
		if err := q.Questions[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// QuestionCount returns the number of questions in the quiz.
func (q *Quiz) QuestionCount() int {
	return len(q.Questions)
}
