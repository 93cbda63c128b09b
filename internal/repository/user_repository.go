package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leblingo/internal/repository/models"
	"leblingo/internal/util"

	"github.com/jmoiron/sqlx"
)

// userColumns lists every users column with a quoted lowercase alias so
// result names match the model's db tags.
const userColumns = `
	id "id",
	email "email",
	password_hash "password_hash",
	google_id "google_id",
	display_name "display_name",
	created_at "created_at",
	updated_at "updated_at",
	last_login_at "last_login_at",
	deleted_at "deleted_at"`

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
}

// sqlxUserRepository implements UserRepository using sqlx.
type sqlxUserRepository struct {
	db *sqlx.DB
}

// NewSQLXUserRepository creates a new instance of sqlxUserRepository.
func NewSQLXUserRepository(db *sqlx.DB) UserRepository {
	return &sqlxUserRepository{db: db}
}

// CreateUser inserts a new user into the database.
func (r *sqlxUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, email, password_hash, google_id, display_name, created_at, updated_at, last_login_at)
	          VALUES (:id, :email, :password_hash, :google_id, :display_name, :created_at, :updated_at, :last_login_at)`

	if user.ID == "" {
		user.ID = util.NewULID()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user with email %s already exists: %w", user.Email, err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
func (r *sqlxUserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + `
	FROM users
	WHERE id = :1
	AND deleted_at IS NULL`

	executor := GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &user, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (r *sqlxUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + `
	FROM users
	WHERE email = :1
	AND deleted_at IS NULL`

	executor := GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// GetUserByGoogleID retrieves a user by their Google ID.
func (r *sqlxUserRepository) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + `
	FROM users
	WHERE google_id = :1
	AND deleted_at IS NULL`

	executor := GetExecutor(ctx, r.db)
	err := executor.GetContext(ctx, &user, query, googleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by google_id: %w", err)
	}
	return &user, nil
}

// UpdateUser updates an existing user's mutable fields. The service layer
// prepares the user struct with the values that should be stored.
func (r *sqlxUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `UPDATE users SET
	            email = :email,
	            password_hash = :password_hash,
	            google_id = :google_id,
	            display_name = :display_name,
	            last_login_at = :last_login_at,
	            updated_at = :updated_at
	          WHERE id = :id AND deleted_at IS NULL`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for user update: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
