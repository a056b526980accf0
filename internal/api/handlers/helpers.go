package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postdispatch/internal/service"
)

const maxListLimit = 500

func errorResponse(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrCampaignNotFound),
		errors.Is(err, service.ErrPoolNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrInvalidCampaignState):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrNoWorkersAvailable),
		errors.Is(err, service.ErrNoCandidatePosts),
		errors.Is(err, service.ErrNoContentAvailable),
		errors.Is(err, service.ErrNoAccountsAvailable):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

func serviceError(c *fiber.Ctx, err error) error {
	return errorResponse(c, statusFor(err), err.Error())
}

func queryLimit(c *fiber.Ctx, def int) int {
	limit := c.QueryInt("limit", def)
	if limit <= 0 {
		return def
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
