package middleware

import (
	"leblingo/internal/domain"
	"leblingo/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the validation middleware.
const (
	ValidatedDaysKey = "validated_days"
)

// Bounds for the analytics period query parameter.
const (
	defaultPeriodDays = 7
	maxPeriodDays     = 365
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validation.NewValidator(),
	}
}

// ValidateIDParam validates a ULID path parameter such as :id.
func (vm *ValidationMiddleware) ValidateIDParam(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params(param)
		if errs := vm.validator.ValidateID(param, id); len(errs) > 0 {
			return errs // Handled by the ErrorHandler middleware
		}
		return c.Next()
	}
}

// ValidateDaysParam validates the ?days= analytics period parameter and
// stores the parsed value under ValidatedDaysKey.
func (vm *ValidationMiddleware) ValidateDaysParam() fiber.Handler {
	return func(c *fiber.Ctx) error {
		days := defaultPeriodDays
		if daysStr := c.Query("days"); daysStr != "" {
			parsed, err := parsePositiveInt(daysStr, maxPeriodDays)
			if err != nil {
				return domain.ValidationErrors{
					domain.NewInvalidFormatError("days", daysStr),
				}
			}
			days = parsed
		}

		c.Locals(ValidatedDaysKey, days)
		return c.Next()
	}
}

// ValidatedDays returns the period parsed by ValidateDaysParam, or the
// default when the middleware did not run.
func ValidatedDays(c *fiber.Ctx) int {
	if days, ok := c.Locals(ValidatedDaysKey).(int); ok {
		return days
	}
	return defaultPeriodDays
}

// parsePositiveInt parses a small positive integer with an upper bound.
func parsePositiveInt(s string, max int) (int, error) {
	value := 0
	for _, char := range s {
		if char < '0' || char > '9' {
			return 0, domain.NewValidationError("days", "must be a number")
		}
		value = value*10 + int(char-'0')
		if value > max {
			return 0, domain.NewValidationError("days", "exceeds maximum value")
		}
	}
	if value == 0 {
		return 0, domain.NewValidationError("days", "must be greater than 0")
	}
	return value, nil
}
