package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/service"
	"github.com/maheshrc27/postdispatch/internal/transfer"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	s      service.OrchestratorService
	logger *zap.Logger
}

func NewCampaignHandler(s service.OrchestratorService, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{s: s, logger: logger}
}

func (h *CampaignHandler) Plan(c *fiber.Ctx) error {
	var req transfer.PlanCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	plan, err := h.s.PlanCampaignFromSatellite(c.Context(), req.Strategy())
	if err != nil {
		h.logger.Warn("plan campaign", zap.Error(err))
		return serviceError(c, err)
	}
	return h.respond(c, plan, req.Execute)
}

func (h *CampaignHandler) Manual(c *fiber.Ctx) error {
	var req transfer.ManualCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	plan, err := h.s.CreateManualCampaign(c.Context(), service.ManualCampaignRequest{
		PostIDs:  req.PostIDs,
		Strategy: req.Strategy,
		Priority: req.Priority,
	})
	if err != nil {
		h.logger.Warn("manual campaign", zap.Error(err))
		return serviceError(c, err)
	}
	return h.respond(c, plan, req.Execute)
}

// respond returns the new plan and, when asked, starts it right away.
func (h *CampaignHandler) respond(c *fiber.Ctx, plan *models.OrchestrationPlan, execute bool) error {
	resp := transfer.CampaignResponse{Plan: plan}
	if execute {
		exec, err := h.s.ExecuteCampaign(c.Context(), plan.CampaignID)
		if err != nil {
			return serviceError(c, err)
		}
		resp.Plan, resp.Execution = exec.Plan, exec
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *CampaignHandler) Execute(c *fiber.Ctx) error {
	exec, err := h.s.ExecuteCampaign(c.Context(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(exec)
}

func (h *CampaignHandler) List(c *fiber.Ctx) error {
	campaigns, err := h.s.ListCampaigns(c.Context())
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count":     len(campaigns),
		"campaigns": campaigns,
	})
}

func (h *CampaignHandler) Get(c *fiber.Ctx) error {
	exec, err := h.s.GetCampaignStatus(c.Context(), c.Params("id"))
	if err == nil {
		return c.Status(fiber.StatusOK).JSON(exec)
	}
	// Planned campaigns have no execution yet.
	plan, perr := h.s.GetPlan(c.Context(), c.Params("id"))
	if perr != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(transfer.CampaignResponse{Plan: plan})
}

func (h *CampaignHandler) Pause(c *fiber.Ctx) error {
	return h.lifecycle(c, h.s.PauseCampaign)
}

func (h *CampaignHandler) Resume(c *fiber.Ctx) error {
	return h.lifecycle(c, h.s.ResumeCampaign)
}

func (h *CampaignHandler) Cancel(c *fiber.Ctx) error {
	return h.lifecycle(c, h.s.CancelCampaign)
}

func (h *CampaignHandler) lifecycle(c *fiber.Ctx, fn func(ctx context.Context, id string) (*models.CampaignExecution, error)) error {
	exec, err := fn(c.Context(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(exec)
}

func (h *CampaignHandler) Progress(c *fiber.Ctx) error {
	var req transfer.CampaignProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	exec, err := h.s.UpdateCampaignProgress(c.Context(), c.Params("id"), req.Update())
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(exec)
}

func (h *CampaignHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.s.GetOrchestratorOverview(c.Context())
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(overview)
}
