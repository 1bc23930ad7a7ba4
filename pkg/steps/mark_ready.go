package steps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/tenant"
)

// MarkReady flips the tenant to active. Setting the flag twice is a no-op.
type MarkReady struct {
	directory tenant.Directory
	logger    *slog.Logger
}

func NewMarkReady(directory tenant.Directory, logger *slog.Logger) *MarkReady {
	return &MarkReady{
		directory: directory,
		logger:    logger.With("module", "step_mark_ready"),
	}
}

func (s *MarkReady) ID() models.StepID {
	return models.StepMarkReady
}

func (s *MarkReady) Run(ctx context.Context, state *models.WorkflowState) error {
	err := s.directory.MarkActive(ctx, state.TenantID, true)
	if err != nil {
		return fmt.Errorf("failed to mark tenant ready: %w", err)
	}

	s.logger.InfoContext(ctx, "Tenant marked ready", "tenant_id", state.TenantID)

	return nil
}
