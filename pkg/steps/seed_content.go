package steps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/tenant"
)

const (
	welcomeItemKey  = "welcome"
	scheduleItemKey = "sample-schedule"
)

// SeedContent inserts the welcome item and a sample scheduled item. Items
// carry deterministic natural keys and are upserted, so a re-run after a
// crash cannot duplicate rows.
type SeedContent struct {
	directory tenant.Directory
	logger    *slog.Logger
}

func NewSeedContent(directory tenant.Directory, logger *slog.Logger) *SeedContent {
	return &SeedContent{
		directory: directory,
		logger:    logger.With("module", "step_seed_content"),
	}
}

func (s *SeedContent) ID() models.StepID {
	return models.StepSeedDefaultContent
}

func (s *SeedContent) Run(ctx context.Context, state *models.WorkflowState) error {
	welcome := models.ContentItem{
		Key:   welcomeItemKey,
		Title: "Welcome to your workspace",
		Body:  "Your workspace is being set up. This item shows you around.",
	}

	err := s.directory.UpsertContentItem(ctx, state.TenantID, welcome)
	if err != nil {
		return fmt.Errorf("failed to seed welcome item: %w", err)
	}

	scheduledAt := time.Now().Add(24 * time.Hour)
	sample := models.ContentItem{
		Key:         scheduleItemKey,
		Title:       "Sample scheduled item",
		Body:        "An example of scheduled content, one day out.",
		ScheduledAt: &scheduledAt,
	}

	err = s.directory.UpsertContentItem(ctx, state.TenantID, sample)
	if err != nil {
		return fmt.Errorf("failed to seed sample scheduled item: %w", err)
	}

	s.logger.InfoContext(ctx, "Seeded default content", "tenant_id", state.TenantID)

	return nil
}
