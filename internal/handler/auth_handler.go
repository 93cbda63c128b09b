package handler

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/logger"
	"leblingo/internal/middleware"
	"leblingo/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const oauthStateCookieName = "oauthstate"

// AuthHandler handles registration, login and token lifecycle requests.
type AuthHandler struct {
	authService service.AuthService
	appConfig   *config.Config
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(authService service.AuthService, appConfig *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		appConfig:   appConfig,
	}
}

// Register godoc
// @Summary Register a new user
// @Description Creates an email/password account and signs the user in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration details"
// @Success 201 {object} dto.TokenResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}
	if req.Email == "" || req.Password == "" {
		return domain.ValidationErrors{
			domain.NewMissingFieldError("email/password"),
		}
	}

	tokens, err := h.authService.Register(c.Context(), &req)
	if err != nil {
		return err
	}

	logger.Get().Info("User registered", zap.String("email", req.Email))
	return c.Status(fiber.StatusCreated).JSON(tokens)
}

// Login godoc
// @Summary Log in with email and password
// @Description Verifies credentials and issues a JWT pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.TokenResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}
	if req.Email == "" || req.Password == "" {
		return domain.ValidationErrors{
			domain.NewMissingFieldError("email/password"),
		}
	}

	tokens, err := h.authService.Login(c.Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(tokens)
}

// RefreshToken godoc
// @Summary Refresh the JWT pair
// @Description Exchanges a valid refresh token for a new access and refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.TokenResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}
	if req.RefreshToken == "" {
		return domain.ValidationErrors{
			domain.NewMissingFieldError("refresh_token"),
		}
	}

	tokens, err := h.authService.RefreshToken(c.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidJWTToken) {
			return domain.NewUnauthorizedError("invalid refresh token")
		}
		return err
	}
	return c.JSON(tokens)
}

// Logout godoc
// @Summary Log out
// @Description Clears the server-side login session for the authenticated user
// @Tags auth
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.MessageResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if err := h.authService.Logout(c.Context(), userID); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}

// GoogleLogin godoc
// @Summary Initiate Google Login
// @Description Redirects the user to Google's OAuth2 consent page
// @Tags auth
// @Success 307 {string} string "Redirects to Google"
// @Router /auth/google/login [get]
func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return domain.NewInternalError("could not generate state for OAuth flow", err)
	}
	state := base64.URLEncoding.EncodeToString(b)

	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		Secure:   c.Secure(),
		SameSite: "Lax",
		Path:     "/",
	})

	return c.Redirect(h.authService.GetGoogleLoginURL(state), fiber.StatusTemporaryRedirect)
}

// GoogleCallback godoc
// @Summary Google OAuth2 Callback
// @Description Handles user authentication after Google login and issues JWTs
// @Tags auth
// @Produce json
// @Param code query string true "Authorization code from Google"
// @Param state query string true "State string for CSRF protection"
// @Success 200 {object} dto.TokenResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	receivedState := c.Query("state")
	expectedState := c.Cookies(oauthStateCookieName)

	// The state cookie is single use.
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   c.Secure(),
		SameSite: "Lax",
		Path:     "/",
	})

	if code == "" {
		return domain.ValidationErrors{
			domain.NewMissingFieldError("code"),
		}
	}

	tokens, err := h.authService.HandleGoogleCallback(c.Context(), code, receivedState, expectedState)
	if err != nil {
		logger.Get().Warn("Google OAuth callback failed", zap.Error(err))
		return err
	}
	return c.JSON(tokens)
}
