package handler

import (
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/middleware"
	"leblingo/internal/service"
	"leblingo/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// SessionHandler drives quiz sessions over HTTP. Sessions are open to
// anonymous learners; when a user is authenticated the session is bound to
// them.
type SessionHandler struct {
	sessionService service.SessionService
	validator      *validation.Validator
}

// NewSessionHandler creates a new SessionHandler instance
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		validator:      validation.NewValidator(),
	}
}

// CreateSession godoc
// @Summary Start a quiz session
// @Description Starts a session at the first question of the quiz
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body dto.CreateSessionRequest true "Quiz to start"
// @Success 201 {object} dto.SessionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}
	if errs := h.validator.ValidateID("quiz_id", req.QuizID); len(errs) > 0 {
		return errs
	}

	session, err := h.sessionService.CreateSession(c.Context(), middleware.UserID(c), req.QuizID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// GetSession godoc
// @Summary Get a session's current state
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.sessionService.GetSession(c.Context(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// Answer godoc
// @Summary Answer the current question
// @Description Records the answer for the session's current question, replacing any earlier answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body dto.AnswerRequest true "Answer matching the question type"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions/{id}/answer [post]
func (h *SessionHandler) Answer(c *fiber.Ctx) error {
	var req dto.AnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}

	sessionID := c.Params("id")
	if errs := h.validator.ValidateAnswerSubmission(sessionID, req.AnswerText()); len(errs) > 0 {
		return errs
	}

	session, err := h.sessionService.Answer(c.Context(), sessionID, middleware.UserID(c), &req)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// Navigate godoc
// @Summary Move between questions
// @Description Applies a next, previous or goto navigation step. Out-of-range targets leave the position unchanged.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body dto.NavigateRequest true "Navigation command"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions/{id}/navigate [post]
func (h *SessionHandler) Navigate(c *fiber.Ctx) error {
	var req dto.NavigateRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}

	session, err := h.sessionService.Navigate(c.Context(), c.Params("id"), middleware.UserID(c), &req)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// Complete godoc
// @Summary Complete a session and evaluate it
// @Description Marks the session completed and grades all responses. Unanswered questions score as incorrect. Anonymous results carry a result_id for later retrieval.
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.CompleteSessionResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) Complete(c *fiber.Ctx) error {
	result, err := h.sessionService.Complete(c.Context(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// GetResult godoc
// @Summary Fetch a parked anonymous evaluation result
// @Tags sessions
// @Produce json
// @Param id path string true "Result ID"
// @Success 200 {object} dto.EvaluationResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /results/{id} [get]
func (h *SessionHandler) GetResult(c *fiber.Ctx) error {
	result, err := h.sessionService.GetResult(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}
