package web

import "github.com/gofiber/fiber/v3"

// RegisterRoutes mounts every API endpoint on the given app.
func RegisterRoutes(app *fiber.App, handlers *APIHandlers) {
	app.Get("/health", handlers.HealthCheck)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/validate", handlers.ValidateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/run", handlers.RunWorkflow)
	w.Post("/:id/schedules", handlers.CreateSchedule)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/logs", handlers.GetExecutionLogs)
	e.Post("/:id/cancel", handlers.CancelExecution)

	app.Get("/schedules", handlers.GetSchedules)
	app.Delete("/schedules/:id", handlers.DeleteSchedule)

	app.Get("/queue/stats", handlers.GetQueueStats)
}
