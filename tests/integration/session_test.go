package integration

import (
	"net/http"
	"testing"

	"leblingo/internal/dto"
	"leblingo/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

// createSeededSession starts an anonymous session against the seeded quiz.
func createSeededSession(t *testing.T) dto.SessionResponse {
	t.Helper()

	resp, err := app.Test(jsonRequest(t, "POST", "/api/sessions/", dto.CreateSessionRequest{
		QuizID: seededQuizID,
	}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session dto.SessionResponse
	decodeResponse(t, resp, &session)
	require.NotEmpty(t, session.SessionID)
	require.Equal(t, 3, session.QuestionCount)
	return session
}

func TestAnonymousSessionLifecycle(t *testing.T) {
	session := createSeededSession(t)
	assert.Equal(t, 0, session.CurrentQuestionIndex)
	assert.False(t, session.IsCompleted)
	assert.True(t, session.CanGoNext)
	assert.False(t, session.CanGoPrevious)

	base := "/api/sessions/" + session.SessionID

	// Question 1: mcq, correct choice is index 1.
	resp, err := app.Test(jsonRequest(t, "POST", base+"/answer", dto.AnswerRequest{
		ChoiceIndex: intPtr(1),
	}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state dto.SessionResponse
	decodeResponse(t, resp, &state)
	assert.True(t, state.HasAnswered)
	assert.Equal(t, 1, state.AnsweredCount)

	// Move to question 2 and fill the blank.
	resp, err = app.Test(jsonRequest(t, "POST", base+"/navigate", dto.NavigateRequest{Action: "next"}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &state)
	assert.Equal(t, 1, state.CurrentQuestionIndex)

	resp, err = app.Test(jsonRequest(t, "POST", base+"/answer", dto.AnswerRequest{
		Blanks: []string{"kifak"},
	}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Jump straight to question 3 and answer wrong on purpose.
	resp, err = app.Test(jsonRequest(t, "POST", base+"/navigate", dto.NavigateRequest{
		Action: "goto",
		Index:  intPtr(2),
	}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, "POST", base+"/answer", dto.AnswerRequest{
		ChoiceIndex: intPtr(0),
	}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &state)
	assert.Equal(t, 3, state.AnsweredCount)

	// Complete: 2 of 3 correct.
	resp, err = app.Test(jsonRequest(t, "POST", base+"/complete", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var completed dto.CompleteSessionResponse
	decodeResponse(t, resp, &completed)
	assert.InDelta(t, 2.0/3.0, completed.Score, 0.01)
	require.NotEmpty(t, completed.ResultID)

	// The result stays retrievable for anonymous users.
	resp, err = app.Test(jsonRequest(t, "GET", "/api/results/"+completed.ResultID, nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result dto.EvaluationResponse
	decodeResponse(t, resp, &result)
	assert.InDelta(t, completed.Score, result.Score, 0.0001)

	// The stored session reflects completion.
	resp, err = app.Test(jsonRequest(t, "GET", base, nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &state)
	assert.True(t, state.IsCompleted)
}

func TestCreateSessionUnknownQuiz(t *testing.T) {
	resp, err := app.Test(jsonRequest(t, "POST", "/api/sessions/", dto.CreateSessionRequest{
		QuizID: "01ARZ3NDEKTSV4RRFFQ69G5FZZ",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateSessionRejectsMalformedQuizID(t *testing.T) {
	resp, err := app.Test(jsonRequest(t, "POST", "/api/sessions/", dto.CreateSessionRequest{
		QuizID: "not-a-ulid",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body middleware.ValidationErrorResponse
	decodeResponse(t, resp, &body)
	require.NotEmpty(t, body.Errors)
	assert.Equal(t, "quiz_id", body.Errors[0].Field)
}

func TestAuthenticatedSessionIsOwnerBound(t *testing.T) {
	_, ownerTokens := registerTestUser(t)
	_, intruderTokens := registerTestUser(t)

	resp, err := app.Test(authedRequest(t, "POST", "/api/sessions/", ownerTokens.AccessToken, dto.CreateSessionRequest{
		QuizID: seededQuizID,
	}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session dto.SessionResponse
	decodeResponse(t, resp, &session)

	// Another user's token cannot read the session.
	resp, err = app.Test(authedRequest(t, "GET", "/api/sessions/"+session.SessionID, intruderTokens.AccessToken, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The owner still can.
	resp, err = app.Test(authedRequest(t, "GET", "/api/sessions/"+session.SessionID, ownerTokens.AccessToken, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOneShotAttemptEvaluation(t *testing.T) {
	_, tokens := registerTestUser(t)

	resp, err := app.Test(authedRequest(t, "POST", "/api/quizzes/"+seededQuizID+"/attempts", tokens.AccessToken, dto.AttemptRequest{
		Responses: []dto.AttemptResponseInput{
			{QuestionIndex: 0, ChoiceIndex: intPtr(1)},
			{QuestionIndex: 1, Blanks: []string{"KIFAK"}}, // case-insensitive grading
			{QuestionIndex: 2, ChoiceIndex: intPtr(1)},
		},
	}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result dto.EvaluationResponse
	decodeResponse(t, resp, &result)
	assert.InDelta(t, 1.0, result.Score, 0.0001)
	assert.True(t, result.Passed)

	// The attempt shows up in the user's history.
	resp, err = app.Test(authedRequest(t, "GET", "/api/users/me/attempts", tokens.AccessToken, nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var attempts dto.UserQuizAttemptsResponse
	decodeResponse(t, resp, &attempts)
	require.NotEmpty(t, attempts.Attempts)
	assert.Equal(t, seededQuizID, attempts.Attempts[0].QuizID)
}
