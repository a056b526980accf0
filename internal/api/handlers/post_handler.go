package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	job "github.com/maheshrc27/postdispatch/internal/jobs"
	"github.com/maheshrc27/postdispatch/internal/service"
	"go.uber.org/zap"
)

const defaultUpcomingLimit = 50

type SchedulerStatusReader interface {
	Status() job.SchedulerStatus
}

type TriggerEnqueuer interface {
	EnqueueTriggerPost(ctx context.Context, postID string) error
}

type PostHandler struct {
	s         service.PublishService
	scheduler SchedulerStatusReader
	tasks     TriggerEnqueuer
	logger    *zap.Logger
}

func NewPostHandler(s service.PublishService, scheduler SchedulerStatusReader, tasks TriggerEnqueuer, logger *zap.Logger) *PostHandler {
	return &PostHandler{s: s, scheduler: scheduler, tasks: tasks, logger: logger}
}

func (h *PostHandler) SchedulerStatus(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.scheduler.Status())
}

func (h *PostHandler) Upcoming(c *fiber.Ctx) error {
	posts, err := h.s.UpcomingPosts(c.Context(), queryLimit(c, defaultUpcomingLimit))
	if err != nil {
		h.logger.Error("list upcoming posts", zap.Error(err))
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count": len(posts),
		"posts": posts,
	})
}

// Trigger publishes a scheduled post now. With ?async=true the post is
// handed to the task queue instead.
func (h *PostHandler) Trigger(c *fiber.Ctx) error {
	postID := c.Params("id")

	if c.QueryBool("async") && h.tasks != nil {
		if err := h.tasks.EnqueueTriggerPost(c.Context(), postID); err != nil {
			h.logger.Error("enqueue trigger", zap.String("post_id", postID), zap.Error(err))
			return errorResponse(c, fiber.StatusInternalServerError, "Error queueing post")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message": "Post queued",
			"post_id": postID,
		})
	}

	outcome, err := h.s.TriggerPost(c.Context(), postID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"post_id": postID,
		"outcome": outcome,
	})
}
