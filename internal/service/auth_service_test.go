package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"leblingo/internal/cache"
	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/repository/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authTestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			SecretKey:       "test-secret-key-that-is-32-bytes!!",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
		GoogleOAuth: config.GoogleOAuthConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost:8090/api/auth/google/callback",
		},
	}
}

// userStore backs mockUserRepository with an in-memory user table.
type userStore struct {
	users map[string]*models.User // keyed by ID
}

func newUserStore() *userStore {
	return &userStore{users: map[string]*models.User{}}
}

func (s *userStore) repo() *mockUserRepository {
	return &mockUserRepository{
		CreateUserFunc: func(ctx context.Context, user *models.User) error {
			copied := *user
			s.users[user.ID] = &copied
			return nil
		},
		GetUserByIDFunc: func(ctx context.Context, userID string) (*models.User, error) {
			return s.users[userID], nil
		},
		GetUserByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			for _, user := range s.users {
				if user.Email == email {
					return user, nil
				}
			}
			return nil, nil
		},
		GetUserByGoogleIDFunc: func(ctx context.Context, googleID string) (*models.User, error) {
			for _, user := range s.users {
				if user.GoogleID.Valid && user.GoogleID.String == googleID {
					return user, nil
				}
			}
			return nil, nil
		},
		UpdateUserFunc: func(ctx context.Context, user *models.User) error {
			copied := *user
			s.users[user.ID] = &copied
			return nil
		},
	}
}

func newAuthServiceForTest(t *testing.T, store *userStore, cacheImpl domain.Cache) AuthService {
	t.Helper()
	svc, err := NewAuthService(store.repo(), cacheImpl, authTestConfig())
	require.NoError(t, err)
	return svc
}

func TestNewAuthServiceRequiresLongSecret(t *testing.T) {
	cfg := authTestConfig()
	cfg.JWT.SecretKey = "too-short"

	_, err := NewAuthService(newUserStore().repo(), nil, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestRegisterIssuesTokenPair(t *testing.T) {
	store := newUserStore()
	cacheImpl := newMemoryCache()
	svc := newAuthServiceForTest(t, store, cacheImpl)
	ctx := context.Background()

	tokens, err := svc.Register(ctx, &dto.RegisterRequest{
		Email:       "  Learner@Example.COM ",
		Password:    "s3cure-pass!",
		DisplayName: "Learner",
	})
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	require.Len(t, store.users, 1)
	var created *models.User
	for _, user := range store.users {
		created = user
	}
	assert.Equal(t, "learner@example.com", created.Email)
	assert.True(t, created.PasswordHash.Valid)
	assert.NotContains(t, created.PasswordHash.String, "s3cure-pass!")
	assert.Equal(t, "Learner", created.DisplayName.String)
	assert.True(t, created.LastLoginAt.Valid)

	accessClaims, err := svc.ValidateJWT(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, accessClaims.UserID)
	assert.Equal(t, "learner@example.com", accessClaims.Email)
	assert.Equal(t, "access", accessClaims.TokenType)

	refreshClaims, err := svc.ValidateJWT(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refreshClaims.TokenType)

	// The login session lands in the cache.
	raw, err := cacheImpl.Get(ctx, cache.UserSessionKey(created.ID))
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, created.ID, doc["user_id"])
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthServiceForTest(t, newUserStore(), nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  dto.RegisterRequest
	}{
		{"Invalid Email", dto.RegisterRequest{Email: "not-an-email", Password: "s3cure-pass!"}},
		{"Short Password", dto.RegisterRequest{Email: "a@example.com", Password: "ab!"}},
		{"No Special Character", dto.RegisterRequest{Email: "a@example.com", Password: "longenoughpass"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, &tc.req)
			require.Error(t, err)
			domainErr, ok := err.(*domain.DomainError)
			require.True(t, ok)
			assert.Equal(t, domain.CodeInvalidInput, domainErr.Code)
		})
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	store := newUserStore()
	svc := newAuthServiceForTest(t, store, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, &dto.RegisterRequest{Email: "dup@example.com", Password: "s3cure-pass!"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &dto.RegisterRequest{Email: "DUP@example.com", Password: "s3cure-pass!"})
	require.Error(t, err)
	domainErr, ok := err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidInput, domainErr.Code)
	assert.Contains(t, domainErr.Message, "already registered")
}

func TestLoginVerifiesPassword(t *testing.T) {
	store := newUserStore()
	svc := newAuthServiceForTest(t, store, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, &dto.RegisterRequest{Email: "login@example.com", Password: "s3cure-pass!"})
	require.NoError(t, err)

	tokens, err := svc.Login(ctx, &dto.LoginRequest{Email: "Login@Example.com", Password: "s3cure-pass!"})
	require.NoError(t, err)
	claims, err := svc.ValidateJWT(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "login@example.com", claims.Email)

	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "login@example.com", Password: "wrong-pass!"})
	require.Error(t, err)
	domainErr, ok := err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, domain.CodeUnauthorized, domainErr.Code)
	// The message never says which of the two was wrong.
	assert.Equal(t, "invalid email or password", domainErr.Message)

	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "unknown@example.com", Password: "s3cure-pass!"})
	require.Error(t, err)
	domainErr, ok = err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, domain.CodeUnauthorized, domainErr.Code)
}

func TestRefreshTokenRotatesPair(t *testing.T) {
	store := newUserStore()
	svc := newAuthServiceForTest(t, store, nil)
	ctx := context.Background()

	tokens, err := svc.Register(ctx, &dto.RegisterRequest{Email: "refresh@example.com", Password: "s3cure-pass!"})
	require.NoError(t, err)

	rotated, err := svc.RefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	claims, err := svc.ValidateJWT(ctx, rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.TokenType)
	assert.Equal(t, "refresh@example.com", claims.Email)
}

func TestRefreshTokenRejectsAccessToken(t *testing.T) {
	svc := newAuthServiceForTest(t, newUserStore(), nil)
	ctx := context.Background()

	tokens, err := svc.Register(ctx, &dto.RegisterRequest{Email: "strict@example.com", Password: "s3cure-pass!"})
	require.NoError(t, err)

	_, err = svc.RefreshToken(ctx, tokens.AccessToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a refresh token")
}

func TestRefreshTokenRejectsGarbage(t *testing.T) {
	svc := newAuthServiceForTest(t, newUserStore(), nil)

	_, err := svc.RefreshToken(context.Background(), "not.a.jwt")
	require.Error(t, err)
}

func TestValidateJWTRejectsWrongKey(t *testing.T) {
	store := newUserStore()
	svc := newAuthServiceForTest(t, store, nil)
	ctx := context.Background()

	tokens, err := svc.Register(ctx, &dto.RegisterRequest{Email: "keys@example.com", Password: "s3cure-pass!"})
	require.NoError(t, err)

	otherCfg := authTestConfig()
	otherCfg.JWT.SecretKey = "another-secret-key-of-32-bytes!!!"
	other, err := NewAuthService(store.repo(), nil, otherCfg)
	require.NoError(t, err)

	_, err = other.ValidateJWT(ctx, tokens.AccessToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidJWTToken)
}

func TestLogoutDropsSession(t *testing.T) {
	store := newUserStore()
	cacheImpl := newMemoryCache()
	svc := newAuthServiceForTest(t, store, cacheImpl)
	ctx := context.Background()

	_, err := svc.Register(ctx, &dto.RegisterRequest{Email: "bye@example.com", Password: "s3cure-pass!"})
	require.NoError(t, err)

	var userID string
	for id := range store.users {
		userID = id
	}
	_, err = cacheImpl.Get(ctx, cache.UserSessionKey(userID))
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, userID))
	_, err = cacheImpl.Get(ctx, cache.UserSessionKey(userID))
	assert.Error(t, err)
}

func TestGoogleLoginURLCarriesState(t *testing.T) {
	svc := newAuthServiceForTest(t, newUserStore(), nil)

	url := svc.GetGoogleLoginURL("csrf-state-123")
	assert.Contains(t, url, "state=csrf-state-123")
	assert.Contains(t, url, "client_id=client-id")
	assert.Contains(t, url, "access_type=offline")
}

func TestGoogleCallbackRejectsBadState(t *testing.T) {
	svc := newAuthServiceForTest(t, newUserStore(), nil)
	ctx := context.Background()

	_, err := svc.HandleGoogleCallback(ctx, "code", "mismatched", "expected")
	assert.ErrorIs(t, err, ErrInvalidAuthState)

	_, err = svc.HandleGoogleCallback(ctx, "code", "", "")
	assert.ErrorIs(t, err, ErrInvalidAuthState)
}

func TestTokenEncryptionRoundTrip(t *testing.T) {
	svc := newAuthServiceForTest(t, newUserStore(), nil)

	plaintext := "ya29.google-access-token"
	encrypted, err := svc.EncryptToken(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, encrypted)

	decrypted, err := svc.DecryptToken(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	// Tampering is detected.
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	_, err = svc.DecryptToken(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)

	// Empty tokens pass through untouched.
	encrypted, err = svc.EncryptToken("")
	require.NoError(t, err)
	assert.Empty(t, encrypted)
}
