package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postdispatch/internal/service"
	"github.com/maheshrc27/postdispatch/internal/transfer"
	"go.uber.org/zap"
)

type ScheduleHandler struct {
	s      service.SmartScheduleService
	logger *zap.Logger
}

func NewScheduleHandler(s service.SmartScheduleService, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{s: s, logger: logger}
}

func smartOptions(req transfer.SmartScheduleRequest) service.SmartScheduleOptions {
	opts := service.SmartScheduleOptions{
		Platforms:              req.Platforms,
		TagIDs:                 req.TagIDs,
		Priority:               req.Priority,
		AccountSelection:       req.AccountSelection,
		MaxAccountsPerPlatform: req.MaxAccountsPerPlatform,
		IncludeRecentlyUsed:    req.IncludeRecentlyUsed,
	}
	if req.TargetTime != nil {
		opts.TargetTime = *req.TargetTime
	}
	return opts
}

func (h *ScheduleHandler) Generate(c *fiber.Ctx) error {
	var req transfer.SmartScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	posts, err := h.s.GenerateSmartSchedule(c.Context(), smartOptions(req))
	if err != nil {
		h.logger.Warn("smart schedule", zap.Error(err))
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(transfer.ScheduleResponse{Count: len(posts), Posts: posts})
}

func (h *ScheduleHandler) GenerateBatch(c *fiber.Ctx) error {
	var req transfer.BatchScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	posts, err := h.s.BatchGenerateSmartSchedule(c.Context(), service.BatchScheduleOptions{
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		IntervalHours:        req.IntervalHours,
		SmartScheduleOptions: smartOptions(req.SmartScheduleRequest),
	})
	if err != nil {
		h.logger.Warn("batch smart schedule", zap.Error(err))
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(transfer.ScheduleResponse{Count: len(posts), Posts: posts})
}

func (h *ScheduleHandler) ContentAnalytics(c *fiber.Ctx) error {
	analytics, err := h.s.GetContentAnalytics(c.Context())
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(analytics)
}
