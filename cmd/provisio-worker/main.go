package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/provisio/provisio/pkg/cmd"
	"github.com/provisio/provisio/pkg/log"
	"github.com/provisio/provisio/pkg/webhook"
)

func main() {
	command := &cli.Command{
		Name:                  "provisio-worker",
		EnableShellCompletion: true,
		Usage:                 "Execute queued tenant provisioning workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for workflow state persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (gochannel, kafka)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "token-secret",
				Usage:    "HMAC secret for tenant login tokens (min 32 bytes)",
				Required: true,
				Sources:  cli.EnvVars("TOKEN_SECRET"),
			},
			&cli.StringFlag{
				Name:    "login-link-base",
				Usage:   "Base URL for tenant login links in owner emails",
				Value:   "https://app.provisio.dev/login",
				Sources: cli.EnvVars("LOGIN_LINK_BASE"),
			},
			&cli.DurationFlag{
				Name:    "token-ttl",
				Usage:   "Lifetime of tenant login tokens",
				Value:   24 * time.Hour,
				Sources: cli.EnvVars("TOKEN_TTL"),
			},
			&cli.StringFlag{
				Name:    "webhook-validation",
				Usage:   "Webhook validation mode (strict, lenient)",
				Value:   "strict",
				Sources: cli.EnvVars("WEBHOOK_VALIDATION"),
			},
			&cli.BoolFlag{
				Name:    "skip-webhook-validation",
				Usage:   "Mark webhook validation successful without probing",
				Sources: cli.EnvVars("SKIP_WEBHOOK_VALIDATION"),
			},
			&cli.BoolFlag{
				Name:    "auto-deploy-integration",
				Usage:   "Deploy the optional integration for pro tenants",
				Sources: cli.EnvVars("AUTO_DEPLOY_INTEGRATION"),
			},
			&cli.DurationFlag{
				Name:    "step-timeout",
				Usage:   "Per-step execution timeout",
				Value:   2 * time.Minute,
				Sources: cli.EnvVars("STEP_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "stuck-after",
				Usage:   "Re-trigger running workflows whose active step is older than this",
				Value:   10 * time.Minute,
				Sources: cli.EnvVars("STUCK_AFTER"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("provisio-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Provisio Worker")

			repo, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := repo.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			directory, err := cmd.NewDirectory(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			registry, err := cmd.NewStepRegistry(directory, cmd.StepConfig{
				TokenSecret:           []byte(command.String("token-secret")),
				LoginLinkBase:         command.String("login-link-base"),
				TokenTTL:              command.Duration("token-ttl"),
				WebhookMode:           webhook.Mode(command.String("webhook-validation")),
				SkipWebhookValidation: command.Bool("skip-webhook-validation"),
				AutoDeployIntegration: command.Bool("auto-deploy-integration"),
			}, logger)
			if err != nil {
				return err
			}

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "provisio-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			worker := NewWorker(
				workerID,
				repo,
				registry,
				eventBus,
				command.Duration("step-timeout"),
				command.Duration("stuck-after"),
				logger,
			)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
