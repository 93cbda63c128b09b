package middleware_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"leblingo/internal/dto"
	"leblingo/internal/middleware"
	"leblingo/internal/repository/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

// manualMockAuthService implements service.AuthService with overridable
// functions; only ValidateJWT matters for middleware tests.
type manualMockAuthService struct {
	ValidateJWTFunc func(ctx context.Context, tokenString string) (*dto.AuthClaims, error)
}

func (m *manualMockAuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	panic("not implemented in mock")
}

func (m *manualMockAuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	panic("not implemented in mock")
}

func (m *manualMockAuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*dto.TokenResponse, error) {
	panic("not implemented in mock")
}

func (m *manualMockAuthService) Logout(ctx context.Context, userID string) error {
	panic("not implemented in mock")
}

func (m *manualMockAuthService) GetGoogleLoginURL(state string) string {
	panic("not implemented in mock")
}

func (m *manualMockAuthService) HandleGoogleCallback(ctx context.Context, code, receivedState, expectedState string) (*dto.TokenResponse, error) {
	panic("not implemented in mock")
}

func (m *manualMockAuthService) ValidateJWT(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
	if m.ValidateJWTFunc != nil {
		return m.ValidateJWTFunc(ctx, tokenString)
	}
	return nil, errors.New("ValidateJWTFunc not set on mock")
}

func (m *manualMockAuthService) CreateJWT(ctx context.Context, user *models.User, ttl time.Duration, tokenType string) (string, error) {
	panic("not implemented in mock")
}

func (m *manualMockAuthService) EncryptToken(token string) (string, error) {
	panic("not implemented in mock")
}

func (m *manualMockAuthService) DecryptToken(encryptedToken string) (string, error) {
	panic("not implemented in mock")
}

func accessClaims(userID string) *dto.AuthClaims {
	return &dto.AuthClaims{
		UserID:    userID,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
		},
	}
}

func TestOptionalAuth(t *testing.T) {
	tests := []struct {
		name                string
		authHeader          string
		setupMock           func(mockSvc *manualMockAuthService)
		expectedUserIDLocal interface{}
	}{
		{
			name:                "No Auth Header",
			authHeader:          "",
			setupMock:           func(mockSvc *manualMockAuthService) {},
			expectedUserIDLocal: nil,
		},
		{
			name:       "Valid Access Token",
			authHeader: "Bearer valid_access_token",
			setupMock: func(mockSvc *manualMockAuthService) {
				mockSvc.ValidateJWTFunc = func(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
					assert.Equal(t, "valid_access_token", tokenString)
					return accessClaims("user123"), nil
				}
			},
			expectedUserIDLocal: "user123",
		},
		{
			name:       "Invalid Token",
			authHeader: "Bearer invalid_token",
			setupMock: func(mockSvc *manualMockAuthService) {
				mockSvc.ValidateJWTFunc = func(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
					return nil, errors.New("invalid token")
				}
			},
			expectedUserIDLocal: nil,
		},
		{
			name:       "Refresh Token Instead Of Access",
			authHeader: "Bearer valid_refresh_token",
			setupMock: func(mockSvc *manualMockAuthService) {
				mockSvc.ValidateJWTFunc = func(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
					claims := accessClaims("user456")
					claims.TokenType = "refresh"
					return claims, nil
				}
			},
			expectedUserIDLocal: nil,
		},
		{
			name:                "Non Bearer Scheme",
			authHeader:          "Basic some_token",
			setupMock:           func(mockSvc *manualMockAuthService) {},
			expectedUserIDLocal: nil,
		},
		{
			name:                "Bearer With Empty Token",
			authHeader:          "Bearer ",
			setupMock:           func(mockSvc *manualMockAuthService) {},
			expectedUserIDLocal: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockAuthSvc := &manualMockAuthService{}
			tc.setupMock(mockAuthSvc)

			app := fiber.New()
			nextHandlerCalled := false
			var userIDLocalValue interface{}

			app.Get("/test_optional_auth", middleware.OptionalAuth(mockAuthSvc), func(c *fiber.Ctx) error {
				nextHandlerCalled = true
				userIDLocalValue = c.Locals(middleware.UserIDKey)
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest("GET", "/test_optional_auth", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}

			resp, err := app.Test(req, -1)
			assert.NoError(t, err)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.True(t, nextHandlerCalled, "next handler was not called")
			assert.Equal(t, tc.expectedUserIDLocal, userIDLocalValue)
		})
	}
}

func TestProtected(t *testing.T) {
	tests := []struct {
		name           string
		authHeader     string
		setupMock      func(mockSvc *manualMockAuthService)
		expectedStatus int
		expectedUserID interface{}
	}{
		{
			name:           "No Auth Header",
			authHeader:     "",
			setupMock:      func(mockSvc *manualMockAuthService) {},
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "Valid Access Token",
			authHeader: "Bearer good",
			setupMock: func(mockSvc *manualMockAuthService) {
				mockSvc.ValidateJWTFunc = func(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
					return accessClaims("user789"), nil
				}
			},
			expectedStatus: fiber.StatusOK,
			expectedUserID: "user789",
		},
		{
			name:       "Expired Token",
			authHeader: "Bearer expired",
			setupMock: func(mockSvc *manualMockAuthService) {
				mockSvc.ValidateJWTFunc = func(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
					return nil, errors.New("token is expired")
				}
			},
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "Refresh Token Rejected",
			authHeader: "Bearer refresh",
			setupMock: func(mockSvc *manualMockAuthService) {
				mockSvc.ValidateJWTFunc = func(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
					claims := accessClaims("user789")
					claims.TokenType = "refresh"
					return claims, nil
				}
			},
			expectedStatus: fiber.StatusForbidden,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockAuthSvc := &manualMockAuthService{}
			tc.setupMock(mockAuthSvc)

			app := fiber.New()
			var userIDLocalValue interface{}
			app.Get("/test_protected", middleware.Protected(mockAuthSvc), func(c *fiber.Ctx) error {
				userIDLocalValue = c.Locals(middleware.UserIDKey)
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest("GET", "/test_protected", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}

			resp, err := app.Test(req, -1)
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedStatus, resp.StatusCode)
			if tc.expectedStatus == fiber.StatusOK {
				assert.Equal(t, tc.expectedUserID, userIDLocalValue)
			}
		})
	}
}
