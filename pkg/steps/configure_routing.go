package steps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/tenant"
)

// ConfigureRouting flips the tenant's routing-ready flag. Setting the flag
// to the same value twice is a no-op, so the step is naturally idempotent.
type ConfigureRouting struct {
	directory tenant.Directory
	logger    *slog.Logger
}

func NewConfigureRouting(directory tenant.Directory, logger *slog.Logger) *ConfigureRouting {
	return &ConfigureRouting{
		directory: directory,
		logger:    logger.With("module", "step_configure_routing"),
	}
}

func (s *ConfigureRouting) ID() models.StepID {
	return models.StepConfigureRouting
}

func (s *ConfigureRouting) Run(ctx context.Context, state *models.WorkflowState) error {
	err := s.directory.SetRoutingReady(ctx, state.TenantID, true)
	if err != nil {
		return fmt.Errorf("failed to configure routing: %w", err)
	}

	s.logger.InfoContext(ctx, "Routing configured", "tenant_id", state.TenantID)

	return nil
}
