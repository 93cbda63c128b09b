package handler

import (
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/middleware"
	"leblingo/internal/service"

	"github.com/gofiber/fiber/v2"
)

// QuizHandler handles quiz retrieval and direct evaluation requests.
type QuizHandler struct {
	quizService       service.QuizService
	evaluationService service.EvaluationService
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(quizService service.QuizService, evaluationService service.EvaluationService) *QuizHandler {
	return &QuizHandler{
		quizService:       quizService,
		evaluationService: evaluationService,
	}
}

// GetOrGenerateQuiz godoc
// @Summary Get the quiz for a lesson
// @Description Returns the lesson's quiz, generating one on first request
// @Tags quizzes
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.QuizRequest true "Lesson to quiz on"
// @Success 200 {object} dto.QuizResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 429 {object} middleware.ErrorResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Router /quiz [post]
func (h *QuizHandler) GetOrGenerateQuiz(c *fiber.Ctx) error {
	var req dto.QuizRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}
	if req.LessonID == "" {
		return domain.ValidationErrors{
			domain.NewMissingFieldError("lesson_id"),
		}
	}

	quiz, err := h.quizService.GetOrGenerateQuiz(c.Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(quiz)
}

// EvaluateAttempt godoc
// @Summary Evaluate a full answer set against a quiz
// @Description Grades every submitted response, persists the attempt and returns per-question feedback
// @Tags quizzes
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Quiz ID"
// @Param request body dto.AttemptRequest true "Answers to evaluate"
// @Success 200 {object} dto.EvaluationResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /quizzes/{id}/attempts [post]
func (h *QuizHandler) EvaluateAttempt(c *fiber.Ctx) error {
	var req dto.AttemptRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}

	result, err := h.evaluationService.EvaluateAttempt(c.Context(), middleware.UserID(c), c.Params("id"), &req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
