package handlers

import (
	"github.com/gofiber/fiber/v2"
	job "github.com/maheshrc27/postdispatch/internal/jobs"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/service"
	"github.com/maheshrc27/postdispatch/internal/transfer"
	"go.uber.org/zap"
)

const (
	defaultLoadLimit    = 5
	defaultHistoryLimit = 50
	defaultBackoffTries = 3
)

type PoolHandler struct {
	assignment service.IPAssignmentService
	rotation   service.IPRotationService
	backoff    job.BackoffScheduler
	logger     *zap.Logger
}

func NewPoolHandler(
	assignment service.IPAssignmentService,
	rotation service.IPRotationService,
	backoff job.BackoffScheduler,
	logger *zap.Logger,
) *PoolHandler {
	return &PoolHandler{
		assignment: assignment,
		rotation:   rotation,
		backoff:    backoff,
		logger:     logger,
	}
}

func (h *PoolHandler) Recommendation(c *fiber.Ctx) error {
	result, err := h.assignment.GetPoolRecommendation(c.Context(), c.Query("platform"))
	if err != nil {
		h.logger.Error("pool recommendation", zap.Error(err))
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *PoolHandler) Load(c *fiber.Ctx) error {
	loads, err := h.assignment.GetPoolsByLoad(c.Context(), queryLimit(c, defaultLoadLimit))
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"pools": loads,
	})
}

func (h *PoolHandler) Rotate(c *fiber.Ctx) error {
	var req transfer.RotatePoolRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if req.Trigger == "" {
		req.Trigger = models.TriggerManual
	}

	result := h.rotation.RotateIP(c.Context(), service.RotationRequest{
		PoolID:  c.Params("id"),
		Trigger: req.Trigger,
		Reason:  req.Reason,
		Force:   req.Force,
	})
	if !result.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *PoolHandler) RotateWithBackoff(c *fiber.Ctx) error {
	var req transfer.RotateBackoffRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = defaultBackoffTries
	}
	poolID := c.Params("id")

	if req.Async && h.backoff != nil {
		if err := h.backoff.EnqueueRotateBackoff(c.Context(), poolID, req.MaxAttempts); err != nil {
			h.logger.Error("enqueue backoff rotation", zap.String("pool_id", poolID), zap.Error(err))
			return errorResponse(c, fiber.StatusInternalServerError, "Error queueing rotation")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message": "Rotation queued",
			"pool_id": poolID,
		})
	}

	result := h.rotation.RotateWithBackoff(c.Context(), poolID, req.MaxAttempts)
	if !result.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *PoolHandler) Rotations(c *fiber.Ctx) error {
	logs, err := h.rotation.RotationHistory(c.Context(), c.Params("id"), queryLimit(c, defaultHistoryLimit))
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"rotations": logs,
	})
}
