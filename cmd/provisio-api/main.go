package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/provisio/provisio/pkg/cmd"
	"github.com/provisio/provisio/pkg/log"
	"github.com/provisio/provisio/pkg/webhook"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "provisio-api",
		Usage:                 "Queue, run and inspect tenant provisioning workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for workflow state persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
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
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Provisio API")

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

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "provisio-api", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api := NewAPI(logger, repo, registry, eventBus)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
