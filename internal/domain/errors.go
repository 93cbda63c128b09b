package domain

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeRateLimited  ErrorCode = "RATE_LIMITED"

	// Validation errors
	CodeValidation    ErrorCode = "VALIDATION_ERROR"
	CodeMissingField  ErrorCode = "MISSING_FIELD"
	CodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	CodeOutOfRange    ErrorCode = "OUT_OF_RANGE"

	// Resource errors
	CodeLessonNotFound  ErrorCode = "LESSON_NOT_FOUND"
	CodeQuizNotFound    ErrorCode = "QUIZ_NOT_FOUND"
	CodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	CodeResultNotFound  ErrorCode = "RESULT_NOT_FOUND"
	CodeUserNotFound    ErrorCode = "USER_NOT_FOUND"

	// Infrastructure errors
	CodeLLMServiceError ErrorCode = "LLM_SERVICE_ERROR"
	CodeCacheError      ErrorCode = "CACHE_ERROR"
	CodeDatabaseError   ErrorCode = "DATABASE_ERROR"
)

// DomainError represents a domain-specific error with an optional cause and context.
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair to the error for diagnostics.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Helper functions for common errors
func NewNotFoundError(message string) *DomainError {
	return NewError(CodeNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(CodeInvalidInput, message, nil)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewError(CodeInternal, message, cause)
}

func NewUnauthorizedError(message string) *DomainError {
	return NewError(CodeUnauthorized, message, nil)
}

func NewForbiddenError(message string) *DomainError {
	return NewError(CodeForbidden, message, nil)
}

func NewRateLimitedError(retryAfterSeconds int) *DomainError {
	return NewError(CodeRateLimited, "Daily generation limit reached", nil).
		WithContext("retry_after_seconds", retryAfterSeconds)
}

func NewLessonNotFoundError(lessonID string) *DomainError {
	return NewError(CodeLessonNotFound, fmt.Sprintf("Lesson not found with ID: %s", lessonID), nil)
}

func NewQuizNotFoundError(quizID string) *DomainError {
	return NewError(CodeQuizNotFound, fmt.Sprintf("Quiz not found with ID: %s", quizID), nil)
}

func NewSessionNotFoundError(sessionID string) *DomainError {
	return NewError(CodeSessionNotFound, fmt.Sprintf("Quiz session not found with ID: %s", sessionID), nil)
}

func NewResultNotFoundError(resultID string) *DomainError {
	return NewError(CodeResultNotFound, fmt.Sprintf("Evaluation result not found with ID: %s", resultID), nil)
}

func NewUserNotFoundError(userID string) *DomainError {
	return NewError(CodeUserNotFound, fmt.Sprintf("User not found with ID: %s", userID), nil)
}

func NewLLMServiceError(cause error) *DomainError {
	return NewError(CodeLLMServiceError, "Failed to process with LLM service", cause)
}

func NewCacheError(cause error) *DomainError {
	return NewError(CodeCacheError, "Cache operation failed", cause)
}

func NewDatabaseError(message string, cause error) *DomainError {
	return NewError(CodeDatabaseError, message, cause)
}

// ValidationError describes a single invalid request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates field-level validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", e[0].Error())
}

func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

func NewMissingFieldError(field string) ValidationError {
	return ValidationError{Field: field, Message: "is required"}
}

func NewInvalidFormatError(field, value string) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("has invalid format: %q", value)}
}

func NewOutOfRangeError(field string, value, min, max int) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("value %d is out of range [%d, %d]", value, min, max)}
}
