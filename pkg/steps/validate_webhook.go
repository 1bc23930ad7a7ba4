package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/tenant"
	"github.com/provisio/provisio/pkg/webhook"
)

// ValidateWebhook probes the tenant's webhook URL for reachability. The
// probe is a pure read with no side effect, safe to repeat any number of
// times.
type ValidateWebhook struct {
	directory tenant.Directory
	validator *webhook.Validator
	logger    *slog.Logger
}

func NewValidateWebhook(directory tenant.Directory, validator *webhook.Validator, logger *slog.Logger) *ValidateWebhook {
	return &ValidateWebhook{
		directory: directory,
		validator: validator,
		logger:    logger.With("module", "step_validate_webhook"),
	}
}

func (s *ValidateWebhook) ID() models.StepID {
	return models.StepValidateWebhook
}

func (s *ValidateWebhook) Run(ctx context.Context, state *models.WorkflowState) error {
	t, err := s.directory.GetTenant(ctx, state.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	if t.WebhookURL == "" {
		return ErrWebhookURLMissing
	}

	result := s.validator.Validate(ctx, t.WebhookURL)
	if !result.OK {
		return errors.New(result.Reason)
	}

	s.logger.InfoContext(ctx, "Webhook validated",
		"tenant_id", state.TenantID,
		"method", result.Method,
		"status", result.StatusCode,
	)

	return nil
}
