package steps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/tenant"
)

const defaultAutomationSchedule = "@daily"

// DeployAutomations writes the schedule/namespace metadata for pro tenants.
// The record is upserted by tenant key, so the step is naturally idempotent.
type DeployAutomations struct {
	directory tenant.Directory
	logger    *slog.Logger
}

func NewDeployAutomations(directory tenant.Directory, logger *slog.Logger) *DeployAutomations {
	return &DeployAutomations{
		directory: directory,
		logger:    logger.With("module", "step_deploy_automations"),
	}
}

func (s *DeployAutomations) ID() models.StepID {
	return models.StepDeployAutomations
}

func (s *DeployAutomations) Run(ctx context.Context, state *models.WorkflowState) error {
	automation := models.Automation{
		TenantID:  state.TenantID,
		Namespace: "tenant-" + state.TenantID,
		Schedule:  defaultAutomationSchedule,
		UpdatedAt: time.Now(),
	}

	err := s.directory.UpsertAutomation(ctx, automation)
	if err != nil {
		return fmt.Errorf("failed to deploy automations: %w", err)
	}

	s.logger.InfoContext(ctx, "Automations deployed",
		"tenant_id", state.TenantID, "namespace", automation.Namespace)

	return nil
}
