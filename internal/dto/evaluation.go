package dto

import "leblingo/internal/domain"

// ErrorDetail marks one mistake found in an answer.
type ErrorDetail struct {
	Type     string `json:"type"`
	Token    string `json:"token"`
	Hint     string `json:"hint"`
	Severity string `json:"severity"`
}

// QuestionFeedback carries the evaluation outcome for one question.
type QuestionFeedback struct {
	QIndex     int           `json:"q_index"`
	OK         bool          `json:"ok"`
	Errors     []ErrorDetail `json:"errors"`
	Suggestion string        `json:"suggestion,omitempty"`
	Confidence float64       `json:"confidence"`
}

// EvaluationResponse represents the evaluation result in the API response
// @Description Quiz evaluation result with per-question feedback
type EvaluationResponse struct {
	Score           float64            `json:"score"`
	Feedback        []QuestionFeedback `json:"feedback"`
	OverallFeedback string             `json:"overall_feedback"`
	Grade           string             `json:"grade"`
	Passed          bool               `json:"passed"`
}

// NewEvaluationResponse maps a domain evaluation result onto the wire shape.
func NewEvaluationResponse(result *domain.EvaluationResult) *EvaluationResponse {
	feedback := make([]QuestionFeedback, 0, len(result.Feedback))
	for _, fb := range result.Feedback {
		errors := make([]ErrorDetail, 0, len(fb.Errors))
		for _, e := range fb.Errors {
			errors = append(errors, ErrorDetail{
				Type:     string(e.Type),
				Token:    e.Token,
				Hint:     e.Hint,
				Severity: string(e.Severity),
			})
		}
		feedback = append(feedback, QuestionFeedback{
			QIndex:     fb.QuestionIndex,
			OK:         fb.IsCorrect,
			Errors:     errors,
			Suggestion: fb.Suggestion,
			Confidence: fb.Confidence,
		})
	}
	return &EvaluationResponse{
		Score:           result.Score,
		Feedback:        feedback,
		OverallFeedback: result.OverallFeedback,
		Grade:           result.Grade(),
		Passed:          result.Passed(),
	}
}

// CompleteSessionResponse is returned when a session is completed. ResultID
// is set for anonymous sessions so the result can be fetched later.
type CompleteSessionResponse struct {
	EvaluationResponse
	ResultID string `json:"result_id,omitempty"`
}

// AttemptResponseInput is one answered question in a direct evaluation
// request. Exactly one answer field should be set.
type AttemptResponseInput struct {
	QuestionIndex int      `json:"question_index"`
	ChoiceIndex   *int     `json:"choice_index,omitempty"`
	Text          *string  `json:"text,omitempty"`
	Blanks        []string `json:"blanks,omitempty"`
}

// ToUserAnswer converts the input into a domain answer value, nil when no
// field is set.
func (r AttemptResponseInput) ToUserAnswer() domain.UserAnswer {
	return answerFromParts(r.ChoiceIndex, r.Text, r.Blanks)
}

// AttemptRequest represents the request body for evaluating a full set of
// answers against a quiz in one call.
// @Description Request body for submitting quiz answers for evaluation
type AttemptRequest struct {
	Responses []AttemptResponseInput `json:"responses" validate:"required"`
}
