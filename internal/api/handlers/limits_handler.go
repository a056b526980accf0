package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/service"
	"github.com/maheshrc27/postdispatch/internal/transfer"
)

type LimitsHandler struct {
	s service.LimitService
}

func NewLimitsHandler(s service.LimitService) *LimitsHandler {
	return &LimitsHandler{s: s}
}

func (h *LimitsHandler) Check(c *fiber.Ctx) error {
	var req transfer.CapacityCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusOK).JSON(h.s.CheckPostingCapacity(c.Context(), req.AccountID, req.GroupID, req.AppID))
}

func (h *LimitsHandler) CheckBulk(c *fiber.Ctx) error {
	var req transfer.BulkCapacityRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusOK).JSON(h.s.CheckBulkPostingCapacity(c.Context(), req.Posts))
}

func (h *LimitsHandler) Status(c *fiber.Ctx) error {
	scope := c.Query("scope")
	switch scope {
	case "", models.ScopeApp, models.ScopeGroup, models.ScopeAccount:
	default:
		return errorResponse(c, fiber.StatusBadRequest, "scope must be app, group or account")
	}
	report := h.s.GetLimitStatus(c.Context(), service.LimitStatusFilter{
		Scope:   scope,
		ScopeID: c.Query("scope_id"),
	})
	return c.Status(fiber.StatusOK).JSON(report)
}

func (h *LimitsHandler) Rules(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"rules": h.s.Rules(),
	})
}

func (h *LimitsHandler) UpdateRules(c *fiber.Ctx) error {
	var req transfer.UpdateRulesRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.s.ImportRules(req.Rules); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"rules": h.s.Rules(),
	})
}

func (h *LimitsHandler) ClearCache(c *fiber.Ctx) error {
	h.s.ClearCache(c.Context())
	return c.SendStatus(fiber.StatusNoContent)
}
