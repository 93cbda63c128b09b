package handler

import (
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/middleware"
	"leblingo/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SyncHandler handles cross-device synchronization requests.
type SyncHandler struct {
	syncService service.SyncService
}

// NewSyncHandler creates a new SyncHandler instance
func NewSyncHandler(syncService service.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// Sync godoc
// @Summary Exchange changes with the server
// @Description Applies the client's changes, reports conflicts and returns server changes since last sync
// @Tags sync
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.SyncRequest true "Client changes and last sync time"
// @Success 200 {object} dto.SyncResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /sync [post]
func (h *SyncHandler) Sync(c *fiber.Ctx) error {
	var req dto.SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}

	response, err := h.syncService.Sync(c.Context(), middleware.UserID(c), &req)
	if err != nil {
		return err
	}
	return c.JSON(response)
}

// ProcessOfflineQueue godoc
// @Summary Replay queued offline actions
// @Description Applies actions a client queued while offline; each action succeeds or fails individually
// @Tags sync
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.OfflineQueueRequest true "Queued actions"
// @Success 200 {object} dto.OfflineQueueResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /sync/offline-queue [post]
func (h *SyncHandler) ProcessOfflineQueue(c *fiber.Ctx) error {
	var req dto.OfflineQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("request body must be valid JSON")
	}

	response, err := h.syncService.ProcessOfflineQueue(c.Context(), middleware.UserID(c), &req)
	if err != nil {
		return err
	}
	return c.JSON(response)
}

// GetStatus godoc
// @Summary Get sync status
// @Description Reports the user's last sync time and pending server change count
// @Tags sync
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.SyncStatusResponse
// @Router /sync/status [get]
func (h *SyncHandler) GetStatus(c *fiber.Ctx) error {
	status, err := h.syncService.GetStatus(c.Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(status)
}
