package handler

import (
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/middleware"
	"leblingo/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles account profile and history requests.
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// parsePagination reads pagination query parameters with defaults.
func parsePagination(c *fiber.Ctx) *dto.Pagination {
	page := &dto.Pagination{
		Limit:  c.QueryInt("limit"),
		Offset: c.QueryInt("offset"),
		Page:   c.QueryInt("page"),
	}
	page.Normalize()
	return page
}

// GetMyProfile godoc
// @Summary Get the authenticated user's profile
// @Description Returns the account plus study statistics and preferences
// @Tags users
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.UserProfileResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) GetMyProfile(c *fiber.Ctx) error {
	profile, err := h.userService.GetUserProfile(c.Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

// UpdateMyProfile godoc
// @Summary Update the authenticated user's profile
// @Description Applies a partial update to display name, level and settings
// @Tags users
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.UpdateProfileRequest true "Fields to update"
// @Success 200 {object} dto.UserProfileResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /users/me/profile [put]
func (h *UserHandler) UpdateMyProfile(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}

	profile, err := h.userService.UpdateUserProfile(c.Context(), middleware.UserID(c), &req)
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

// GetMyAttempts godoc
// @Summary List the authenticated user's quiz attempts
// @Description Returns a page of past attempts, newest first
// @Tags users
// @Produce json
// @Security ApiKeyAuth
// @Param lesson_id query string false "Restrict to one lesson"
// @Param start_date query string false "Earliest date (YYYY-MM-DD)"
// @Param end_date query string false "Latest date (YYYY-MM-DD)"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} dto.UserQuizAttemptsResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /users/me/attempts [get]
func (h *UserHandler) GetMyAttempts(c *fiber.Ctx) error {
	filters := &dto.AttemptFilters{
		LessonID:  c.Query("lesson_id"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}

	attempts, err := h.userService.GetUserQuizAttempts(c.Context(), middleware.UserID(c), filters, parsePagination(c))
	if err != nil {
		return err
	}
	return c.JSON(attempts)
}

// GetMyErrors godoc
// @Summary List the authenticated user's recent mistakes
// @Description Returns error records accumulated within the period
// @Tags users
// @Produce json
// @Security ApiKeyAuth
// @Param days query int false "Period in days (default 7)"
// @Success 200 {object} dto.UserErrorsResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /users/me/errors [get]
func (h *UserHandler) GetMyErrors(c *fiber.Ctx) error {
	errorsResp, err := h.userService.GetUserErrors(c.Context(), middleware.UserID(c), middleware.ValidatedDays(c))
	if err != nil {
		return err
	}
	return c.JSON(errorsResp)
}
