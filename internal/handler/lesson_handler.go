package handler

import (
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/middleware"
	"leblingo/internal/service"

	"github.com/gofiber/fiber/v2"
)

// LessonHandler handles lesson generation and retrieval requests.
type LessonHandler struct {
	lessonService service.LessonService
	rateLimiter   service.RateLimitService
}

// NewLessonHandler creates a new LessonHandler instance
func NewLessonHandler(lessonService service.LessonService, rateLimiter service.RateLimitService) *LessonHandler {
	return &LessonHandler{
		lessonService: lessonService,
		rateLimiter:   rateLimiter,
	}
}

// GenerateStory godoc
// @Summary Generate a bilingual lesson story
// @Description Generates an English/Lebanese-Arabic story for a topic, reusing an existing lesson when content repeats
// @Tags lessons
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.StoryRequest true "Topic and level"
// @Success 200 {object} dto.LessonResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 429 {object} middleware.ErrorResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Router /story [post]
func (h *LessonHandler) GenerateStory(c *fiber.Ctx) error {
	var req dto.StoryRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}

	lesson, err := h.lessonService.GenerateStory(c.Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(lesson)
}

// GetLesson godoc
// @Summary Get a lesson by ID
// @Tags lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} dto.LessonResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /lessons/{id} [get]
func (h *LessonHandler) GetLesson(c *fiber.Ctx) error {
	lesson, err := h.lessonService.GetLesson(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(lesson)
}

// ListLessons godoc
// @Summary List lessons
// @Description Returns a filtered page of lessons
// @Tags lessons
// @Produce json
// @Param topic query string false "Filter by topic"
// @Param level query string false "Filter by level"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} dto.LessonListResponse
// @Router /lessons [get]
func (h *LessonHandler) ListLessons(c *fiber.Ctx) error {
	filters := &dto.LessonFilters{
		Topic: c.Query("topic"),
		Level: c.Query("level"),
	}

	lessons, err := h.lessonService.ListLessons(c.Context(), filters, parsePagination(c))
	if err != nil {
		return err
	}
	return c.JSON(lessons)
}

// ListTopics godoc
// @Summary List available topics
// @Tags lessons
// @Produce json
// @Success 200 {object} dto.TopicsResponse
// @Router /topics [get]
func (h *LessonHandler) ListTopics(c *fiber.Ctx) error {
	topics, err := h.lessonService.ListTopics(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(topics)
}

// GetLimits godoc
// @Summary Get generation quota usage
// @Description Reports the authenticated user's daily generation quota
// @Tags lessons
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.RateLimitStatusResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /limits [get]
func (h *LessonHandler) GetLimits(c *fiber.Ctx) error {
	status, err := h.rateLimiter.Status(c.Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(status)
}
