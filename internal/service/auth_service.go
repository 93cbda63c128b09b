package service

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"leblingo/internal/cache"
	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/logger"
	"leblingo/internal/repository"
	"leblingo/internal/repository/models"
	"leblingo/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	tokenIssuer       = "leblingo"
	tokenTypeAccess   = "access"
	tokenTypeRefresh  = "refresh"

	pbkdf2Iterations = 100_000
	passwordSaltLen  = 32
	passwordKeyLen   = 32
)

var (
	ErrInvalidAuthState      = errors.New("invalid oauth state")
	ErrFailedToExchangeToken = errors.New("failed to exchange oauth token")
	ErrFailedToGetUserInfo   = errors.New("failed to get user info from google")
	ErrInvalidJWTToken       = errors.New("invalid jwt token")
	ErrEncryptionFailed      = errors.New("failed to encrypt token")
	ErrDecryptionFailed      = errors.New("failed to decrypt token")
)

// AuthService defines the interface for authentication operations.
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshTokenString string) (*dto.TokenResponse, error)
	Logout(ctx context.Context, userID string) error
	GetGoogleLoginURL(state string) string
	HandleGoogleCallback(ctx context.Context, code string, receivedState string, expectedState string) (*dto.TokenResponse, error)
	ValidateJWT(ctx context.Context, tokenString string) (*dto.AuthClaims, error)
	CreateJWT(ctx context.Context, user *models.User, ttl time.Duration, tokenType string) (string, error)
	EncryptToken(token string) (string, error)
	DecryptToken(encryptedToken string) (string, error)
}

// userSessionDocument is the per-user login record kept in Redis. Google
// tokens are stored here AES-encrypted rather than in the users table, so
// they expire together with the session.
type userSessionDocument struct {
	UserID             string     `json:"user_id"`
	Email              string     `json:"email"`
	LoggedInAt         time.Time  `json:"logged_in_at"`
	GoogleAccessToken  string     `json:"google_access_token,omitempty"`
	GoogleRefreshToken string     `json:"google_refresh_token,omitempty"`
	GoogleTokenExpiry  *time.Time `json:"google_token_expiry,omitempty"`
}

type authServiceImpl struct {
	userRepo      repository.UserRepository
	cacheImpl     domain.Cache
	oauth2Config  *oauth2.Config
	appConfig     *config.Config
	encryptionKey []byte // 32 bytes for AES-256
	sessionTTL    time.Duration
}

// NewAuthService creates a new instance of AuthService. cacheImpl may be
// nil; login sessions are then simply not recorded.
func NewAuthService(userRepo repository.UserRepository, cacheImpl domain.Cache, appConfig *config.Config) (AuthService, error) {
	if len(appConfig.JWT.SecretKey) < 32 {
		return nil, errors.New("jwt secret key must be at least 32 bytes long")
	}

	return &authServiceImpl{
		userRepo:  userRepo,
		cacheImpl: cacheImpl,
		oauth2Config: &oauth2.Config{
			ClientID:     appConfig.GoogleOAuth.ClientID,
			ClientSecret: appConfig.GoogleOAuth.ClientSecret,
			RedirectURL:  appConfig.GoogleOAuth.RedirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		},
		appConfig:     appConfig,
		encryptionKey: []byte(appConfig.JWT.SecretKey[:32]),
		sessionTTL:    appConfig.ParseTTLStringOrDefault(appConfig.CacheTTLs.UserSession, 24*time.Hour),
	}, nil
}

// Register creates a password-backed account and signs the user in.
func (s *authServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if !domain.IsValidEmail(email) {
		return nil, domain.NewInvalidInputError("a valid email address is required")
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to check for existing user", err)
	}
	if existing != nil {
		return nil, domain.NewInvalidInputError("email is already registered")
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, domain.NewInternalError("failed to hash password", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           util.NewULID(),
		Email:        email,
		PasswordHash: util.StringToNullString(hash),
		DisplayName:  util.StringToNullString(req.DisplayName),
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLoginAt:  util.TimeToNullTime(now),
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, domain.NewDatabaseError("failed to create user", err)
	}

	logger.Get().Info("New user registered", zap.String("userID", user.ID), zap.String("email", user.Email))
	return s.issueTokens(ctx, user, nil)
}

// Login verifies the password and signs the user in. The error never says
// whether the email or the password was wrong.
func (s *authServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to look up user", err)
	}
	if user == nil || !user.PasswordHash.Valid || !verifyPassword(req.Password, user.PasswordHash.String) {
		return nil, domain.NewUnauthorizedError("invalid email or password")
	}

	user.LastLoginAt = util.TimeToNullTime(time.Now())
	user.UpdatedAt = time.Now()
	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		logger.Get().Warn("Failed to record last login time", zap.Error(err), zap.String("userID", user.ID))
	}

	logger.Get().Info("User logged in", zap.String("userID", user.ID))
	return s.issueTokens(ctx, user, nil)
}

// Logout drops the cached login session.
func (s *authServiceImpl) Logout(ctx context.Context, userID string) error {
	if s.cacheImpl == nil {
		return nil
	}
	if err := s.cacheImpl.Delete(ctx, cache.UserSessionKey(userID)); err != nil {
		return domain.NewCacheError(err)
	}
	logger.Get().Info("User logged out", zap.String("userID", userID))
	return nil
}

func (s *authServiceImpl) GetGoogleLoginURL(state string) string {
	return s.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleGoogleCallback finishes the OAuth dance: it exchanges the code,
// upserts the user by google id then email, and issues the house JWT pair.
func (s *authServiceImpl) HandleGoogleCallback(ctx context.Context, code string, receivedState string, expectedState string) (*dto.TokenResponse, error) {
	appLogger := logger.Get()
	if expectedState == "" || receivedState != expectedState {
		return nil, ErrInvalidAuthState
	}

	googleToken, err := s.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToExchangeToken, err)
	}

	client := s.oauth2Config.Client(ctx, googleToken)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToGetUserInfo, err)
	}
	defer resp.Body.Close()

	var userInfo dto.GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if userInfo.ID == "" || userInfo.Email == "" {
		return nil, errors.New("google user info is incomplete")
	}

	user, err := s.userRepo.GetUserByGoogleID(ctx, userInfo.ID)
	if err != nil {
		return nil, fmt.Errorf("error fetching user by google_id: %w", err)
	}
	if user == nil {
		// A password account with the same email gets the google id linked.
		user, err = s.userRepo.GetUserByEmail(ctx, strings.ToLower(userInfo.Email))
		if err != nil {
			return nil, fmt.Errorf("error fetching user by email: %w", err)
		}
	}

	now := time.Now()
	if user == nil {
		user = &models.User{
			ID:          util.NewULID(),
			GoogleID:    util.StringToNullString(userInfo.ID),
			Email:       strings.ToLower(userInfo.Email),
			DisplayName: util.StringToNullString(userInfo.Name),
			CreatedAt:   now,
			UpdatedAt:   now,
			LastLoginAt: util.TimeToNullTime(now),
		}
		if err := s.userRepo.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		appLogger.Info("New user created via Google OAuth", zap.String("userID", user.ID), zap.String("email", user.Email))
	} else {
		user.GoogleID = util.StringToNullString(userInfo.ID)
		if userInfo.Name != "" && !user.DisplayName.Valid {
			user.DisplayName = util.StringToNullString(userInfo.Name)
		}
		user.LastLoginAt = util.TimeToNullTime(now)
		user.UpdatedAt = now
		if err := s.userRepo.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		appLogger.Info("User logged in via Google OAuth", zap.String("userID", user.ID), zap.String("email", user.Email))
	}

	return s.issueTokens(ctx, user, googleToken)
}

func (s *authServiceImpl) CreateJWT(ctx context.Context, user *models.User, ttl time.Duration, tokenType string) (string, error) {
	now := time.Now()
	claims := dto.AuthClaims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   user.ID,
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.appConfig.JWT.SecretKey))
}

func (s *authServiceImpl) ValidateJWT(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
	appLogger := logger.Get()
	token, err := jwt.ParseWithClaims(tokenString, &dto.AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.appConfig.JWT.SecretKey), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			appLogger.Warn("JWT token expired",
				zap.Error(err),
				zap.String("token_snippet", tokenSnippet(tokenString)))
		} else {
			appLogger.Warn("JWT validation failed",
				zap.Error(err),
				zap.String("token_snippet", tokenSnippet(tokenString)))
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidJWTToken, err)
	}

	if claims, ok := token.Claims.(*dto.AuthClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidJWTToken
}

// RefreshToken rotates the token pair. Both tokens are replaced; the old
// refresh token keeps validating until it expires, which is acceptable for
// this deployment.
func (s *authServiceImpl) RefreshToken(ctx context.Context, refreshTokenString string) (*dto.TokenResponse, error) {
	appLogger := logger.Get()
	claims, err := s.ValidateJWT(ctx, refreshTokenString)
	if err != nil {
		appLogger.Warn("Refresh token validation failed",
			zap.Error(err),
			zap.String("refresh_token_snippet", tokenSnippet(refreshTokenString)))
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrInvalidJWTToken)
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil || user == nil {
		appLogger.Error("User not found for refresh token", zap.String("userID", claims.UserID), zap.Error(err))
		return nil, domain.NewUserNotFoundError(claims.UserID)
	}

	appLogger.Info("JWT token refreshed", zap.String("userID", user.ID))
	return s.issueTokens(ctx, user, nil)
}

// issueTokens creates the access/refresh pair and records the login session.
// googleToken, when present, is encrypted into the session document.
func (s *authServiceImpl) issueTokens(ctx context.Context, user *models.User, googleToken *oauth2.Token) (*dto.TokenResponse, error) {
	accessToken, err := s.CreateJWT(ctx, user, s.appConfig.JWT.AccessTokenTTL, tokenTypeAccess)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	refreshToken, err := s.CreateJWT(ctx, user, s.appConfig.JWT.RefreshTokenTTL, tokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	s.storeUserSession(ctx, user, googleToken)

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *authServiceImpl) storeUserSession(ctx context.Context, user *models.User, googleToken *oauth2.Token) {
	if s.cacheImpl == nil {
		return
	}

	doc := userSessionDocument{
		UserID:     user.ID,
		Email:      user.Email,
		LoggedInAt: time.Now(),
	}
	if googleToken != nil {
		encryptedAccess, err := s.EncryptToken(googleToken.AccessToken)
		if err != nil {
			logger.Get().Warn("Failed to encrypt google access token", zap.Error(err), zap.String("userID", user.ID))
		} else {
			doc.GoogleAccessToken = encryptedAccess
		}
		if googleToken.RefreshToken != "" {
			encryptedRefresh, err := s.EncryptToken(googleToken.RefreshToken)
			if err != nil {
				logger.Get().Warn("Failed to encrypt google refresh token", zap.Error(err), zap.String("userID", user.ID))
			} else {
				doc.GoogleRefreshToken = encryptedRefresh
			}
		}
		if !googleToken.Expiry.IsZero() {
			expiry := googleToken.Expiry
			doc.GoogleTokenExpiry = &expiry
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := s.cacheImpl.Set(ctx, cache.UserSessionKey(user.ID), string(raw), s.sessionTTL); err != nil {
		logger.Get().Warn("Failed to store user session", zap.Error(err), zap.String("userID", user.ID))
	}
}

// EncryptToken encrypts a token using AES-GCM.
func (s *authServiceImpl) EncryptToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(token), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptToken decrypts a token using AES-GCM.
func (s *authServiceImpl) DecryptToken(encryptedToken string) (string, error) {
	if encryptedToken == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(encryptedToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// hashPassword derives a PBKDF2-HMAC-SHA256 key from the password with a
// fresh random salt, stored as hex(salt) followed by hex(key).
func hashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, passwordKeyLen, sha256.New)
	return hex.EncodeToString(salt) + hex.EncodeToString(key), nil
}

// verifyPassword re-derives the key from the stored salt and compares in
// constant time.
func verifyPassword(password, stored string) bool {
	if len(stored) != (passwordSaltLen+passwordKeyLen)*2 {
		return false
	}
	salt, err := hex.DecodeString(stored[:passwordSaltLen*2])
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(stored[passwordSaltLen*2:])
	if err != nil {
		return false
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, passwordKeyLen, sha256.New)
	return subtle.ConstantTimeCompare(key, expected) == 1
}

func tokenSnippet(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
