package steps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/tenant"
)

const integrationItemKey = "optional-integration"

// DeployOptionalIntegration deploys the optional managed integration for pro
// tenants when the auto-deploy feature flag is enabled. When the flag is off
// the step completes immediately; the checkpoint is still marked completed
// so the workflow never stalls on a disabled feature.
type DeployOptionalIntegration struct {
	directory tenant.Directory
	enabled   bool
	logger    *slog.Logger
}

func NewDeployOptionalIntegration(directory tenant.Directory, enabled bool, logger *slog.Logger) *DeployOptionalIntegration {
	return &DeployOptionalIntegration{
		directory: directory,
		enabled:   enabled,
		logger:    logger.With("module", "step_deploy_integration"),
	}
}

func (s *DeployOptionalIntegration) ID() models.StepID {
	return models.StepDeployOptionalIntegration
}

func (s *DeployOptionalIntegration) Run(ctx context.Context, state *models.WorkflowState) error {
	if !s.enabled {
		s.logger.InfoContext(ctx, "Optional integration auto-deploy disabled, completing step",
			"tenant_id", state.TenantID)

		return nil
	}

	item := models.ContentItem{
		Key:   integrationItemKey,
		Title: "Optional integration",
		Body:  "Managed integration deployed during provisioning.",
	}

	err := s.directory.UpsertContentItem(ctx, state.TenantID, item)
	if err != nil {
		return fmt.Errorf("failed to deploy optional integration: %w", err)
	}

	s.logger.InfoContext(ctx, "Optional integration deployed", "tenant_id", state.TenantID)

	return nil
}
