// Package main provides the Provisio API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/provisio/provisio/pkg/eventbus"
	"github.com/provisio/provisio/pkg/persistence"
	"github.com/provisio/provisio/pkg/provision"
	"github.com/provisio/provisio/pkg/registry"
	"github.com/provisio/provisio/pkg/services"
	"github.com/provisio/provisio/pkg/web"
)

type API struct {
	logger   *slog.Logger
	repo     persistence.StateRepository
	registry *registry.Registry
	eventBus eventbus.EventBus
	validate *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	repo persistence.StateRepository,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:   logger,
		repo:     repo,
		registry: registry,
		eventBus: eventBus,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	executor := provision.NewExecutor(a.repo, a.registry, a.logger)
	provisioning := services.NewProvisioning(a.repo, executor, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(provisioning, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Provisio API")
	})

	p := app.Group("/provision")
	p.Post("/queue", handlers.QueueProvision)
	p.Post("/run", handlers.RunProvision)
	p.Get("/status", handlers.GetProvisionStatus)
	p.Post("/retry", handlers.RetryProvision)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
