package handlers

import "github.com/gofiber/fiber/v2"

type Handlers struct {
	Posts     *PostHandler
	Limits    *LimitsHandler
	Pools     *PoolHandler
	Campaigns *CampaignHandler
	Schedule  *ScheduleHandler
}

// Register mounts every API route under /api. Nil handlers are skipped.
func (h Handlers) Register(app *fiber.App) {
	api := app.Group("/api")

	if h.Posts != nil {
		api.Get("/scheduler/status", h.Posts.SchedulerStatus)
		api.Get("/posts/upcoming", h.Posts.Upcoming)
		api.Post("/posts/:id/trigger", h.Posts.Trigger)
	}

	if h.Limits != nil {
		limits := api.Group("/limits")
		limits.Post("/check", h.Limits.Check)
		limits.Post("/check-bulk", h.Limits.CheckBulk)
		limits.Get("/status", h.Limits.Status)
		limits.Get("/rules", h.Limits.Rules)
		limits.Put("/rules", h.Limits.UpdateRules)
		limits.Delete("/cache", h.Limits.ClearCache)
	}

	if h.Pools != nil {
		pools := api.Group("/ip-pools")
		pools.Get("/recommendation", h.Pools.Recommendation)
		pools.Get("/load", h.Pools.Load)
		pools.Post("/:id/rotate", h.Pools.Rotate)
		pools.Post("/:id/rotate/backoff", h.Pools.RotateWithBackoff)
		pools.Get("/:id/rotations", h.Pools.Rotations)
	}

	if h.Campaigns != nil {
		campaigns := api.Group("/campaigns")
		campaigns.Post("/plan", h.Campaigns.Plan)
		campaigns.Post("/manual", h.Campaigns.Manual)
		campaigns.Get("/", h.Campaigns.List)
		campaigns.Get("/:id", h.Campaigns.Get)
		campaigns.Post("/:id/execute", h.Campaigns.Execute)
		campaigns.Post("/:id/pause", h.Campaigns.Pause)
		campaigns.Post("/:id/resume", h.Campaigns.Resume)
		campaigns.Post("/:id/cancel", h.Campaigns.Cancel)
		campaigns.Post("/:id/progress", h.Campaigns.Progress)
		api.Get("/orchestrator/overview", h.Campaigns.Overview)
	}

	if h.Schedule != nil {
		api.Post("/smart-schedule", h.Schedule.Generate)
		api.Post("/smart-schedule/batch", h.Schedule.GenerateBatch)
		api.Get("/content/analytics", h.Schedule.ContentAnalytics)
	}
}
