package handler

import (
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/middleware"
	"leblingo/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ProgressHandler handles study tracking and analytics requests. All routes
// require authentication.
type ProgressHandler struct {
	progressService service.ProgressService
}

// NewProgressHandler creates a new ProgressHandler instance
func NewProgressHandler(progressService service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

// RecordLessonView godoc
// @Summary Record a lesson view
// @Description Bumps the lesson's view counter and starts progress tracking on first contact
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Lesson ID"
// @Success 200 {object} dto.LessonProgressResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /progress/lessons/{id}/view [post]
func (h *ProgressHandler) RecordLessonView(c *fiber.Ctx) error {
	progress, err := h.progressService.RecordLessonView(c.Context(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(progress)
}

// RecordTranslationToggle godoc
// @Summary Record a translation toggle
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Lesson ID"
// @Success 200 {object} dto.LessonProgressResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /progress/lessons/{id}/toggle [post]
func (h *ProgressHandler) RecordTranslationToggle(c *fiber.Ctx) error {
	progress, err := h.progressService.RecordTranslationToggle(c.Context(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(progress)
}

// UpdateLessonProgress godoc
// @Summary Update lesson progress explicitly
// @Description Sets status and study time for one lesson
// @Tags progress
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Lesson ID"
// @Param request body dto.UpdateProgressRequest true "Progress update"
// @Success 200 {object} dto.LessonProgressResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /progress/lessons/{id} [put]
func (h *ProgressHandler) UpdateLessonProgress(c *fiber.Ctx) error {
	var req dto.UpdateProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}

	progress, err := h.progressService.UpdateLessonProgress(c.Context(), middleware.UserID(c), c.Params("id"), &req)
	if err != nil {
		return err
	}
	return c.JSON(progress)
}

// GetLessonProgress godoc
// @Summary Get progress on one lesson
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Lesson ID"
// @Success 200 {object} dto.LessonProgressResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /progress/lessons/{id} [get]
func (h *ProgressHandler) GetLessonProgress(c *fiber.Ctx) error {
	progress, err := h.progressService.GetLessonProgress(c.Context(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(progress)
}

// GetSummary godoc
// @Summary Get period study metrics
// @Description Returns accuracy, study time, lessons and error breakdown over the period
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param days query int false "Period in days (default 7)"
// @Success 200 {object} dto.ProgressSummaryResponse
// @Router /progress/summary [get]
func (h *ProgressHandler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.progressService.GetSummary(c.Context(), middleware.UserID(c), middleware.ValidatedDays(c))
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// GetTrends godoc
// @Summary Get per-day study trends
// @Description Returns zero-filled daily accuracy, lesson and error series, oldest first
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param days query int false "Days back (default 7)"
// @Success 200 {object} dto.TrendsResponse
// @Router /progress/trends [get]
func (h *ProgressHandler) GetTrends(c *fiber.Ctx) error {
	trends, err := h.progressService.GetTrends(c.Context(), middleware.UserID(c), middleware.ValidatedDays(c))
	if err != nil {
		return err
	}
	return c.JSON(trends)
}

// GetDashboard godoc
// @Summary Get the study dashboard
// @Description Returns profile totals, weekly activity and per-topic progress
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.DashboardResponse
// @Router /progress/dashboard [get]
func (h *ProgressHandler) GetDashboard(c *fiber.Ctx) error {
	dashboard, err := h.progressService.GetDashboard(c.Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(dashboard)
}

// GetAnalytics godoc
// @Summary Get learning analytics
// @Description Returns velocity, engagement and per-question-type performance over the period
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param days query int false "Period in days (default 7)"
// @Success 200 {object} dto.AnalyticsResponse
// @Router /progress/analytics [get]
func (h *ProgressHandler) GetAnalytics(c *fiber.Ctx) error {
	analytics, err := h.progressService.GetAnalytics(c.Context(), middleware.UserID(c), middleware.ValidatedDays(c))
	if err != nil {
		return err
	}
	return c.JSON(analytics)
}
