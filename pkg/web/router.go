package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp builds the fiber application with all routes registered.
func NewApp(handlers *Handlers) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("FlowForge API")
	})

	app.Get("/health", handlers.HealthCheck)
	app.Get("/node-types", handlers.NodeTypes)

	w := app.Group("/workflows")
	w.Get("/", handlers.ListWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/publish", handlers.PublishWorkflow)
	w.Post("/:id/unpublish", handlers.UnpublishWorkflow)
	w.Post("/:id/versions", handlers.NewDraftVersion)
	w.Post("/:id/executions", handlers.StartExecution)
	w.Get("/:id/executions", handlers.ListExecutions)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/pause", handlers.PauseExecution)
	e.Post("/:id/resume", handlers.ResumeExecution)
	e.Post("/:id/cancel", handlers.CancelExecution)

	t := app.Group("/tasks")
	t.Get("/", handlers.ListTasks)
	t.Get("/:id", handlers.GetTask)
	t.Post("/:id/claim", handlers.ClaimTask)
	t.Post("/:id/complete", handlers.CompleteTask)
	t.Post("/:id/cancel", handlers.CancelTask)

	d := app.Group("/decision-tables")
	d.Get("/", handlers.ListTables)
	d.Post("/", handlers.CreateTable)
	d.Get("/eval-log", handlers.EvalLogEntries)
	d.Get("/:id", handlers.GetTable)
	d.Put("/:id", handlers.UpdateTable)
	d.Delete("/:id", handlers.DeleteTable)
	d.Post("/:id/publish", handlers.PublishTable)
	d.Post("/:id/unpublish", handlers.UnpublishTable)
	d.Post("/:id/evaluate", handlers.EvaluateTable)

	return app
}
