package dto

import (
	"time"

	"leblingo/internal/domain"
)

// Navigation actions accepted by the session navigate endpoint.
const (
	NavigateNext     = "next"
	NavigatePrevious = "previous"
	NavigateGoto     = "goto"
)

// CreateSessionRequest represents the request body for starting a quiz
// session.
// @Description Request body for starting a quiz session
type CreateSessionRequest struct {
	QuizID string `json:"quiz_id" validate:"required"`
}

// AnswerRequest represents a learner's answer to the current question.
// Exactly one of the fields should be set, matching the question type.
// @Description Request body for answering the current question
type AnswerRequest struct {
	ChoiceIndex *int     `json:"choice_index,omitempty"`
	Text        *string  `json:"text,omitempty"`
	Blanks      []string `json:"blanks,omitempty"`
}

// ToUserAnswer converts the request into a domain answer value. It returns
// nil when no answer field is set.
func (r AnswerRequest) ToUserAnswer() domain.UserAnswer {
	return answerFromParts(r.ChoiceIndex, r.Text, r.Blanks)
}

// AnswerText returns the free-text content of the answer, if any, for
// validation purposes.
func (r AnswerRequest) AnswerText() string {
	if r.Text != nil {
		return *r.Text
	}
	return ""
}

// NavigateRequest represents a navigation command within a session.
// @Description Request body for moving between questions
type NavigateRequest struct {
	Action string `json:"action" validate:"required"` // next, previous or goto
	Index  *int   `json:"index,omitempty"`            // Required for goto
}

// SessionResponse represents the client-visible state of a quiz session.
// The current question is included without its answer fields.
// @Description Quiz session state
type SessionResponse struct {
	SessionID            string       `json:"session_id"`
	QuizID               string       `json:"quiz_id"`
	CurrentQuestionIndex int          `json:"current_question_index"`
	CurrentQuestion      QuestionView `json:"current_question"`
	QuestionCount        int          `json:"question_count"`
	AnsweredCount        int          `json:"answered_count"`
	Progress             float64      `json:"progress"`
	IsCompleted          bool         `json:"is_completed"`
	HasAnswered          bool         `json:"has_answered"`
	CanGoNext            bool         `json:"can_go_next"`
	CanGoPrevious        bool         `json:"can_go_previous"`
	StartTime            time.Time    `json:"start_time"`
}

// NewSessionResponse maps a session value onto its client view.
func NewSessionResponse(sessionID string, s domain.QuizSession) *SessionResponse {
	return &SessionResponse{
		SessionID:            sessionID,
		QuizID:               s.Quiz.ID,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		CurrentQuestion:      NewQuestionView(s.CurrentQuestion()),
		QuestionCount:        s.Quiz.QuestionCount(),
		AnsweredCount:        s.AnsweredCount(),
		Progress:             s.ProgressPercentage(),
		IsCompleted:          s.IsCompleted,
		HasAnswered:          s.HasAnsweredCurrent(),
		CanGoNext:            s.CanGoNext(),
		CanGoPrevious:        s.CanGoPrevious(),
		StartTime:            s.StartTime,
	}
}

// --- Session storage document ---

// QuestionDocument is the stored form of a question, answers included. It
// never leaves the server.
type QuestionDocument struct {
	Type         string   `json:"type"`
	Question     string   `json:"question"`
	Choices      []string `json:"choices,omitempty"`
	AnswerIndex  int      `json:"answer_index,omitempty"`
	AnswerText   string   `json:"answer_text,omitempty"`
	AnswerBlanks []string `json:"answer_blanks,omitempty"`
	Rationale    string   `json:"rationale,omitempty"`
}

// StoredResponse is the stored form of one recorded answer.
type StoredResponse struct {
	QuestionIndex int       `json:"question_index"`
	QuestionType  string    `json:"question_type"`
	ChoiceIndex   *int      `json:"choice_index,omitempty"`
	Text          *string   `json:"text,omitempty"`
	Blanks        []string  `json:"blanks,omitempty"`
	IsCorrect     bool      `json:"is_correct"`
	Timestamp     time.Time `json:"timestamp"`
}

// SessionDocument is the cache representation of a quiz session. The quiz is
// embedded whole so a session survives quiz cache eviction.
type SessionDocument struct {
	SessionID            string             `json:"session_id"`
	UserID               string             `json:"user_id,omitempty"`
	QuizID               string             `json:"quiz_id"`
	LessonID             string             `json:"lesson_id"`
	Questions            []QuestionDocument `json:"questions"`
	Responses            []StoredResponse   `json:"responses"`
	CurrentQuestionIndex int                `json:"current_question_index"`
	IsCompleted          bool               `json:"is_completed"`
	StartTime            time.Time          `json:"start_time"`
}

// NewSessionDocument flattens a session value for storage. UserID is empty
// for anonymous sessions.
func NewSessionDocument(sessionID, userID string, s domain.QuizSession) *SessionDocument {
	questions := make([]QuestionDocument, 0, len(s.Quiz.Questions))
	for _, q := range s.Quiz.Questions {
		questions = append(questions, QuestionDocument{
			Type:         string(q.Type),
			Question:     q.Question,
			Choices:      q.Choices,
			AnswerIndex:  q.AnswerIndex,
			AnswerText:   q.AnswerText,
			AnswerBlanks: q.AnswerBlanks,
			Rationale:    q.Rationale,
		})
	}

	responses := make([]StoredResponse, 0, len(s.Responses))
	for _, r := range s.ResponsesInOrder() {
		choice, text, blanks := answerParts(r.Answer)
		responses = append(responses, StoredResponse{
			QuestionIndex: r.QuestionIndex,
			QuestionType:  string(r.QuestionType),
			ChoiceIndex:   choice,
			Text:          text,
			Blanks:        blanks,
			IsCorrect:     r.IsCorrect,
			Timestamp:     r.Timestamp,
		})
	}

	return &SessionDocument{
		SessionID:            sessionID,
		UserID:               userID,
		QuizID:               s.Quiz.ID,
		LessonID:             s.Quiz.LessonID,
		Questions:            questions,
		Responses:            responses,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		IsCompleted:          s.IsCompleted,
		StartTime:            s.StartTime,
	}
}

// ToDomain rebuilds the session value from its stored form.
func (d *SessionDocument) ToDomain() domain.QuizSession {
	questions := make([]domain.QuizQuestion, 0, len(d.Questions))
	for _, q := range d.Questions {
		questionType, _ := domain.ParseQuestionType(q.Type)
		questions = append(questions, domain.QuizQuestion{
			Type:         questionType,
			Question:     q.Question,
			Choices:      q.Choices,
			AnswerIndex:  q.AnswerIndex,
			AnswerText:   q.AnswerText,
			AnswerBlanks: q.AnswerBlanks,
			Rationale:    q.Rationale,
		})
	}

	responses := make(map[int]domain.QuizResponse, len(d.Responses))
	for _, r := range d.Responses {
		questionType, _ := domain.ParseQuestionType(r.QuestionType)
		responses[r.QuestionIndex] = domain.QuizResponse{
			QuestionIndex: r.QuestionIndex,
			QuestionType:  questionType,
			Answer:        answerFromParts(r.ChoiceIndex, r.Text, r.Blanks),
			IsCorrect:     r.IsCorrect,
			Timestamp:     r.Timestamp,
		}
	}

	return domain.QuizSession{
		Quiz: &domain.Quiz{
			ID:        d.QuizID,
			LessonID:  d.LessonID,
			Questions: questions,
		},
		Responses:            responses,
		CurrentQuestionIndex: d.CurrentQuestionIndex,
		IsCompleted:          d.IsCompleted,
		StartTime:            d.StartTime,
	}
}

// DomainResponses rebuilds the recorded responses in question order, for
// evaluation and persistence.
func (d *SessionDocument) DomainResponses() []domain.QuizResponse {
	session := d.ToDomain()
	return session.ResponsesInOrder()
}

func answerParts(a domain.UserAnswer) (choice *int, text *string, blanks []string) {
	switch v := a.(type) {
	case domain.ChoiceAnswer:
		idx := int(v)
		choice = &idx
	case domain.TextAnswer:
		s := string(v)
		text = &s
	case domain.BlankAnswer:
		blanks = []string(v)
	}
	return choice, text, blanks
}

func answerFromParts(choice *int, text *string, blanks []string) domain.UserAnswer {
	switch {
	case choice != nil:
		return domain.ChoiceAnswer(*choice)
	case text != nil:
		return domain.TextAnswer(*text)
	case blanks != nil:
		return domain.BlankAnswer(blanks)
	}
	return nil
}
