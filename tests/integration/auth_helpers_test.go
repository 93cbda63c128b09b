package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"leblingo/internal/dto"
	"leblingo/internal/util"

	"github.com/stretchr/testify/require"
)

const testPassword = "s3cret-pass!word"

// jsonRequest builds an httptest request with a JSON body.
func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// authedRequest is jsonRequest plus a bearer token.
func authedRequest(t *testing.T, method, target, accessToken string, body interface{}) *http.Request {
	t.Helper()
	req := jsonRequest(t, method, target, body)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return req
}

// registerTestUser registers a fresh user through the HTTP API and returns
// its token pair. Each call uses a unique email so tests stay independent.
func registerTestUser(t *testing.T) (email string, tokens dto.TokenResponse) {
	t.Helper()

	email = fmt.Sprintf("learner-%s@example.com", util.NewULID())
	resp, err := app.Test(jsonRequest(t, "POST", "/api/auth/register", dto.RegisterRequest{
		Email:       email,
		Password:    testPassword,
		DisplayName: "Test Learner",
	}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "registration should succeed for %s", email)

	decodeResponse(t, resp, &tokens)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	return email, tokens
}
