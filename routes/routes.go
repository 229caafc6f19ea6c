package routes

import (
	controller "cadence/controllers"
	"cadence/ingest"
	"cadence/middleware"
	"cadence/sequence"
	"cadence/suppression"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dependencies carries the wired services the HTTP layer exposes.
type Dependencies struct {
	DB       *gorm.DB
	Engine   *sequence.Engine
	Registry *suppression.Registry
	Ingestor *ingest.Ingestor
	Logger   *logrus.Logger
}

func SetupAPIRoutes(app *fiber.App, deps Dependencies) {
	sequenceController := controller.NewSequenceController(deps.DB, deps.Engine, deps.Logger)
	suppressionController := controller.NewSuppressionController(deps.DB, deps.Registry, deps.Logger)
	ingestController := controller.NewIngestController(deps.Ingestor, deps.Logger)

	// API group with versioning and request logging
	api := app.Group("/api/v1", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Sequence routes
	seq := api.Group("/sequences")
	seq.Get("/", sequenceController.ListSequences)
	seq.Get("/:id", sequenceController.GetSequence)
	seq.Post("/enroll", sequenceController.EnrollContact)

	// Contact state routes
	api.Get("/contacts/:email/state", sequenceController.GetContactState)

	// Suppression routes
	sup := api.Group("/suppressions")
	sup.Get("/", suppressionController.ListSuppressions)
	sup.Post("/", suppressionController.AddSuppression)
	sup.Get("/:email", suppressionController.CheckSuppression)
	sup.Post("/:email/deactivate", suppressionController.DeactivateSuppression)

	// Manual trigger routes, rate limited: the same passes the background
	// workers run, exposed for operators and backfills
	trigger := api.Group("/run", middleware.TriggerRateLimiter())
	trigger.Post("/orchestrator", sequenceController.RunOrchestrator)
	trigger.Post("/ingest", ingestController.RunIngest)

	deps.Logger.Info("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Setup API routes
	SetupAPIRoutes(app, deps)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
