package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leblingo/internal/domain"
)

func testQuiz(t *testing.T) *domain.Quiz {
	t.Helper()
	return &domain.Quiz{
		ID:       "01HQUIZAAAAAAAAAAAAAAAAAAA",
		LessonID: "01HLESSONAAAAAAAAAAAAAAAAA",
		Questions: []domain.QuizQuestion{
			{
				Type:        domain.QuestionTypeMCQ,
				Question:    "What does 'kifak' mean?",
				Choices:     []string{"How are you?", "Goodbye", "Thanks"},
				AnswerIndex: 0,
			},
			{
				Type:       domain.QuestionTypeTranslation,
				Question:   "Translate 'hello' to Lebanese Arabic",
				AnswerText: "mar7aba",
			},
			{
				Type:         domain.QuestionTypeFillBlank,
				Question:     "ana ___ 3a lbeit",
				AnswerBlanks: []string{"jaye"},
			},
		},
	}
}

func TestSessionDocument_RoundTrip(t *testing.T) {
	quiz := testQuiz(t)
	session, err := domain.NewQuizSession(quiz)
	require.NoError(t, err)

	session = session.AnswerCurrent(domain.ChoiceAnswer(0))
	session = session.GoToNext()
	session = session.AnswerCurrent(domain.TextAnswer("mar7aba"))
	session = session.GoToNext()

	doc := NewSessionDocument("01HSESSIONAAAAAAAAAAAAAAAA", "user-1", session)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded SessionDocument
	require.NoError(t, json.Unmarshal(raw, &decoded))

	rebuilt := decoded.ToDomain()
	assert.Equal(t, 2, rebuilt.CurrentQuestionIndex)
	assert.False(t, rebuilt.IsCompleted)
	assert.Equal(t, 2, rebuilt.AnsweredCount())
	assert.Equal(t, 2, rebuilt.CorrectCount())
	assert.Equal(t, quiz.ID, rebuilt.Quiz.ID)
	assert.Equal(t, 3, rebuilt.Quiz.QuestionCount())

	// The rebuilt session must keep working as a state machine.
	rebuilt = rebuilt.AnswerCurrent(domain.BlankAnswer{"JAYE "})
	assert.Equal(t, 3, rebuilt.CorrectCount())
	rebuilt = rebuilt.Complete()
	assert.True(t, rebuilt.IsCompleted)
	assert.InDelta(t, 1.0, rebuilt.ScorePercentage(), 0.0001)
}

func TestSessionDocument_RoundTripPreservesAnswerKinds(t *testing.T) {
	quiz := testQuiz(t)
	session, err := domain.NewQuizSession(quiz)
	require.NoError(t, err)

	session = session.AnswerCurrent(domain.ChoiceAnswer(2))
	session = session.GoToQuestion(2)
	session = session.AnswerCurrent(domain.BlankAnswer{"jaye", "extra"})

	doc := NewSessionDocument("s1", "", session)
	rebuilt := doc.ToDomain()

	r0, ok := rebuilt.ResponseAt(0)
	require.True(t, ok)
	assert.Equal(t, domain.ChoiceAnswer(2), r0.Answer)
	assert.False(t, r0.IsCorrect)

	r2, ok := rebuilt.ResponseAt(2)
	require.True(t, ok)
	assert.Equal(t, domain.BlankAnswer{"jaye", "extra"}, r2.Answer)
	assert.False(t, r2.IsCorrect)
}

func TestAnswerRequest_ToUserAnswer(t *testing.T) {
	choice := 1
	text := "shu"

	tests := []struct {
		name string
		req  AnswerRequest
		want domain.UserAnswer
	}{
		{
			name: "choice",
			req:  AnswerRequest{ChoiceIndex: &choice},
			want: domain.ChoiceAnswer(1),
		},
		{
			name: "text",
			req:  AnswerRequest{Text: &text},
			want: domain.TextAnswer("shu"),
		},
		{
			name: "blanks",
			req:  AnswerRequest{Blanks: []string{"jaye"}},
			want: domain.BlankAnswer{"jaye"},
		},
		{
			name: "empty",
			req:  AnswerRequest{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.ToUserAnswer())
		})
	}
}

func TestNewSessionResponse_StripsAnswers(t *testing.T) {
	quiz := testQuiz(t)
	session, err := domain.NewQuizSession(quiz)
	require.NoError(t, err)

	resp := NewSessionResponse("s1", session)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "answer_index")
	assert.NotContains(t, string(raw), "answer_text")
	assert.NotContains(t, string(raw), "answer_blanks")

	assert.Equal(t, 0, resp.CurrentQuestionIndex)
	assert.Equal(t, 3, resp.QuestionCount)
	assert.True(t, resp.CanGoNext)
	assert.False(t, resp.CanGoPrevious)
}

func TestSessionDocument_StartTimeSurvives(t *testing.T) {
	quiz := testQuiz(t)
	session, err := domain.NewQuizSession(quiz)
	require.NoError(t, err)

	started := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	session.StartTime = started

	doc := NewSessionDocument("s1", "user-1", session)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded SessionDocument
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.ToDomain().StartTime.Equal(started))
}
