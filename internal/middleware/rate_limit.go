package middleware

import (
	"leblingo/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RateLimited guards a generation endpoint with the per-user daily quota.
// It must run after Protected so the user ID is in the context. Quota
// exhaustion surfaces as a RATE_LIMITED domain error, which the error
// handler turns into a 429 with a Retry-After header.
func RateLimited(rateLimiter service.RateLimitService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := rateLimiter.Allow(c.Context(), UserID(c)); err != nil {
			return err
		}
		return c.Next()
	}
}
