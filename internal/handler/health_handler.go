package handler

import (
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	db         *sqlx.DB
	cacheImpl  domain.Cache
	lessonRepo domain.LessonRepository
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(db *sqlx.DB, cacheImpl domain.Cache, lessonRepo domain.LessonRepository) *HealthHandler {
	return &HealthHandler{
		db:         db,
		cacheImpl:  cacheImpl,
		lessonRepo: lessonRepo,
	}
}

// Liveness godoc
// @Summary Liveness check
// @Description Reports that the process is up, without touching dependencies
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(dto.HealthResponse{Status: "ok"})
}

// Readiness godoc
// @Summary Readiness check
// @Description Pings the database and cache and reports the lesson count; 503 when the database is unreachable
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	response := dto.HealthResponse{Status: "ok", Database: "ok", Cache: "ok"}

	if err := h.db.PingContext(c.Context()); err != nil {
		logger.Get().Error("Readiness check failed: database unreachable", zap.Error(err))
		response.Status = "degraded"
		response.Database = "unreachable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	// The cache degrades the service but does not take it down.
	if h.cacheImpl != nil {
		if err := h.cacheImpl.Ping(c.Context()); err != nil {
			logger.Get().Warn("Readiness check: cache unreachable", zap.Error(err))
			response.Cache = "unreachable"
		}
	}

	if _, total, err := h.lessonRepo.ListLessons(c.Context(), "", "", 1, 0); err == nil {
		response.TotalLessons = int64(total)
	}

	return c.JSON(response)
}
