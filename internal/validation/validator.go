package validation

import (
	"regexp"
	"strings"

	"leblingo/internal/domain"
)

// Validator provides request validation functionality
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateStoryRequest validates the story generation request.
func (v *Validator) ValidateStoryRequest(topic, level string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if topicErrors := v.ValidateTopic(topic); len(topicErrors) > 0 {
		errors = append(errors, topicErrors...)
	}

	if strings.TrimSpace(level) != "" && !domain.IsValidLevel(level) {
		errors = append(errors, domain.NewInvalidFormatError("level", level))
	}

	return errors
}

// ValidateTopic validates a lesson topic parameter.
func (v *Validator) ValidateTopic(topic string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	trimmed := strings.TrimSpace(topic)
	if trimmed == "" {
		errors = append(errors, domain.NewMissingFieldError("topic"))
		return errors
	}
	if len(trimmed) > 100 {
		errors = append(errors, domain.NewOutOfRangeError("topic", len(trimmed), 1, 100))
	}

	return errors
}

// ValidateAnswerSubmission validates a quiz answer submission before it
// reaches the session machine. Free-text answers are checked for
// transliteration validity; a structural mismatch with the question is not
// an error here, the session grades it as incorrect.
func (v *Validator) ValidateAnswerSubmission(sessionID string, answerText string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(sessionID) == "" {
		errors = append(errors, domain.NewMissingFieldError("session_id"))
	} else if !isValidULID(sessionID) {
		errors = append(errors, domain.NewInvalidFormatError("session_id", sessionID))
	}

	if len(answerText) > 2000 {
		errors = append(errors, domain.NewOutOfRangeError("answer", len(answerText), 0, 2000))
	} else if answerText != "" && !IsValidTransliteration(answerText) {
		errors = append(errors, domain.NewInvalidFormatError("answer", answerText))
	}

	return errors
}

// ValidateID validates a resource identifier path parameter.
func (v *Validator) ValidateID(field, id string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(id) == "" {
		errors = append(errors, domain.NewMissingFieldError(field))
	} else if !isValidULID(id) {
		errors = append(errors, domain.NewInvalidFormatError(field, id))
	}

	return errors
}

// IsValidTransliteration reports whether text is acceptable Latin-script
// Lebanese Arabic. Letters, digits, spaces and basic punctuation are
// allowed; digits stand in for Arabic sounds (3 for ayn, 7 for ha). Arabic
// script is rejected so learners practice arabizi. Empty text is valid.
func IsValidTransliteration(text string) bool {
	for _, r := range text {
		if r >= 0x0600 && r <= 0x06FF {
			return false
		}
		if !isAllowedTransliterationRune(r) {
			return false
		}
	}
	return true
}

func isAllowedTransliterationRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == ' ':
		return true
	}
	switch r {
	case '.', ',', '!', '?', '\'', '"', '-':
		return true
	}
	return false
}

// Helper functions for validation

// isValidULID checks if the string is a valid ULID format
func isValidULID(s string) bool {
	// ULID is 26 characters long, base32 encoded
	if len(s) != 26 {
		return false
	}
	// Check if all characters are valid base32 (Crockford's Base32)
	validULID := regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)
	return validULID.MatchString(s)
}
