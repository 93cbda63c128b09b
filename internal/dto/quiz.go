package dto

import "leblingo/internal/domain"

// QuizRequest represents the request body for fetching or generating a quiz.
// @Description Request body for obtaining a quiz for a lesson
type QuizRequest struct {
	LessonID string `json:"lesson_id" validate:"required"`
}

// QuestionView represents a question as shown to the learner. Answer fields
// are stripped; correctness is judged server side.
type QuestionView struct {
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Choices  []string `json:"choices,omitempty"`
}

// NewQuestionView maps a question onto its client-safe view.
func NewQuestionView(q domain.QuizQuestion) QuestionView {
	return QuestionView{
		Type:     string(q.Type),
		Question: q.Question,
		Choices:  q.Choices,
	}
}

// QuizResponse represents a quiz in the API response
// @Description Quiz with client-safe questions
type QuizResponse struct {
	QuizID        string         `json:"quiz_id"`
	LessonID      string         `json:"lesson_id"`
	Questions     []QuestionView `json:"questions"`
	QuestionCount int            `json:"question_count"`
}

// NewQuizResponse maps a domain quiz onto the wire shape, stripping answers.
func NewQuizResponse(quiz *domain.Quiz) *QuizResponse {
	questions := make([]QuestionView, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		questions = append(questions, NewQuestionView(q))
	}
	return &QuizResponse{
		QuizID:        quiz.ID,
		LessonID:      quiz.LessonID,
		Questions:     questions,
		QuestionCount: len(questions),
	}
}
