package domain

import (
	"sort"
	"time"
)

// QuizResponse is one learner answer to one question. It is created when the
// question is answered and only ever replaced wholesale when the same
// question is answered again.
type QuizResponse struct {
	QuestionIndex int
	QuestionType  QuestionType
	Answer        UserAnswer
	IsCorrect     bool
	Timestamp     time.Time
}

// QuizSession tracks one in-progress quiz attempt. Every transition returns
// a new session value; the receiver is never mutated, so replacing a held
// session is atomic from the holder's point of view. The quiz itself is
// shared and read-only.
//
// currentQuestionIndex stays within [0, QuestionCount) after any transition.
type QuizSession struct {
	Quiz                 *Quiz
	Responses            map[int]QuizResponse
	CurrentQuestionIndex int
	IsCompleted          bool
	StartTime            time.Time
}

// NewQuizSession starts a session positioned at the first question with no
// responses recorded.
func NewQuizSession(quiz *Quiz) (QuizSession, error) {
	if quiz == nil {
		return QuizSession{}, NewInvalidInputError("quiz is required to start a session")
	}
	if len(quiz.Questions) == 0 {
		return QuizSession{}, NewInvalidInputError("cannot start a session on a quiz with no questions")
	}
	return QuizSession{
		Quiz:                 quiz,
		Responses:            map[int]QuizResponse{},
		CurrentQuestionIndex: 0,
		IsCompleted:          false,
		StartTime:            time.Now(),
	}, nil
}

// AnswerCurrent records an answer for the current question, replacing any
// earlier answer at the same index. Correctness is derived from the
// question's type-specific comparison. Once the session is completed the
// call is a no-op.
func (s QuizSession) AnswerCurrent(answer UserAnswer) QuizSession {
	if s.IsCompleted || s.Quiz == nil {
		return s
	}
	question := s.Quiz.Questions[s.CurrentQuestionIndex]
	response := QuizResponse{
		QuestionIndex: s.CurrentQuestionIndex,
		QuestionType:  question.Type,
		Answer:        answer,
		IsCorrect:     question.IsCorrect(answer),
		Timestamp:     time.Now(),
	}

	responses := make(map[int]QuizResponse, len(s.Responses)+1)
	for idx, r := range s.Responses {
		responses[idx] = r
	}
	responses[response.QuestionIndex] = response

	s.Responses = responses
	return s
}

// GoToNext advances to the next question. At the last question it is a no-op.
func (s QuizSession) GoToNext() QuizSession {
	return s.GoToQuestion(s.CurrentQuestionIndex + 1)
}

// GoToPrevious moves back one question. At the first question it is a no-op.
func (s QuizSession) GoToPrevious() QuizSession {
	return s.GoToQuestion(s.CurrentQuestionIndex - 1)
}

// GoToQuestion jumps to the question at index. Out-of-range indexes are
// silently ignored rather than clamped or wrapped.
func (s QuizSession) GoToQuestion(index int) QuizSession {
	if s.IsCompleted || s.Quiz == nil {
		return s
	}
	if index < 0 || index >= s.Quiz.QuestionCount() {
		return s
	}
	s.CurrentQuestionIndex = index
	return s
}

// Complete marks the session finished. Completion is unconditional: sessions
// may be completed with questions still unanswered, and downstream scoring
// treats those as incorrect.
func (s QuizSession) Complete() QuizSession {
	s.IsCompleted = true
	return s
}

// CurrentQuestion returns the question the session is positioned at.
func (s QuizSession) CurrentQuestion() QuizQuestion {
	return s.Quiz.Questions[s.CurrentQuestionIndex]
}

// ResponseAt returns the recorded response for a question index, if any.
func (s QuizSession) ResponseAt(index int) (QuizResponse, bool) {
	r, ok := s.Responses[index]
	return r, ok
}

// HasAnsweredCurrent reports whether the current question has a response.
func (s QuizSession) HasAnsweredCurrent() bool {
	_, ok := s.Responses[s.CurrentQuestionIndex]
	return ok
}

// CanGoNext reports whether the session is not at the last question.
func (s QuizSession) CanGoNext() bool {
	return s.CurrentQuestionIndex < s.Quiz.QuestionCount()-1
}

// CanGoPrevious reports whether the session is not at the first question.
func (s QuizSession) CanGoPrevious() bool {
	return s.CurrentQuestionIndex > 0
}

// AnsweredCount returns how many questions have a recorded response.
func (s QuizSession) AnsweredCount() int {
	return len(s.Responses)
}

// CorrectCount returns how many recorded responses are correct.
func (s QuizSession) CorrectCount() int {
	count := 0
	for _, r := range s.Responses {
		if r.IsCorrect {
			count++
		}
	}
	return count
}

// ProgressPercentage is the share of questions answered so far, in [0, 1].
func (s QuizSession) ProgressPercentage() float64 {
	total := s.Quiz.QuestionCount()
	if total == 0 {
		return 0
	}
	return float64(s.AnsweredCount()) / float64(total)
}

// ScorePercentage is the share of all questions answered correctly, in
// [0, 1]. Unanswered questions count against the score.
func (s QuizSession) ScorePercentage() float64 {
	total := s.Quiz.QuestionCount()
	if total == 0 {
		return 0
	}
	return float64(s.CorrectCount()) / float64(total)
}

// ResponsesInOrder returns the recorded responses sorted by question index.
func (s QuizSession) ResponsesInOrder() []QuizResponse {
	ordered := make([]QuizResponse, 0, len(s.Responses))
	for _, r := range s.Responses {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].QuestionIndex < ordered[j].QuestionIndex
	})
	return ordered
}
