// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/provisio/provisio/pkg/mailer"
	"github.com/provisio/provisio/pkg/registry"
	"github.com/provisio/provisio/pkg/steps"
	"github.com/provisio/provisio/pkg/tenant"
	"github.com/provisio/provisio/pkg/token"
	"github.com/provisio/provisio/pkg/webhook"
)

// StepConfig carries everything the provisioning steps need, resolved from
// CLI flags by the binaries.
type StepConfig struct {
	TokenSecret           []byte
	LoginLinkBase         string
	TokenTTL              time.Duration
	WebhookMode           webhook.Mode
	SkipWebhookValidation bool
	AutoDeployIntegration bool
}

// NewDirectory creates the tenant directory backing the steps. Postgres URLs
// get the shared directory tables; everything else runs in memory, which only
// suits a single process.
func NewDirectory(ctx context.Context, logger *slog.Logger, databaseURL string) (tenant.Directory, error) {
	if parsePersistenceProvider(databaseURL) == "postgres" {
		return tenant.NewPostgresDirectory(ctx, logger, databaseURL)
	}

	return tenant.NewMemoryDirectory(), nil
}

// NewStepRegistry wires every provisioning step against the tenant directory
// and registers them.
func NewStepRegistry(directory tenant.Directory, config StepConfig, logger *slog.Logger) (*registry.Registry, error) {
	issuer, err := token.NewIssuer(config.TokenSecret)
	if err != nil {
		return nil, err
	}

	validator := webhook.NewValidator(logger,
		webhook.WithMode(config.WebhookMode),
		webhook.WithSkip(config.SkipWebhookValidation),
	)

	reg := registry.NewRegistry(logger)
	reg.RegisterStep(steps.NewSeedContent(directory, logger))
	reg.RegisterStep(steps.NewConfigureRouting(directory, logger))
	reg.RegisterStep(steps.NewValidateWebhook(directory, validator, logger))
	reg.RegisterStep(steps.NewDeployAutomations(directory, logger))
	reg.RegisterStep(steps.NewDeployOptionalIntegration(directory, config.AutoDeployIntegration, logger))
	reg.RegisterStep(steps.NewSendOwnerEmail(directory, issuer, mailer.NewSlogSender(logger),
		config.LoginLinkBase, config.TokenTTL, logger))
	reg.RegisterStep(steps.NewMarkReady(directory, logger))

	return reg, nil
}
