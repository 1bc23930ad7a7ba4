package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/provisio/provisio/pkg/eventbus"
	"github.com/provisio/provisio/pkg/events"
	"github.com/provisio/provisio/pkg/models"
)

const defaultStuckAfter = 10 * time.Minute

// Sweeper periodically re-triggers workflows orphaned by a crash: states
// stuck in running whose active step started longer than stuckAfter ago.
// Re-triggering is safe because resume is idempotent over completed steps.
type Sweeper struct {
	repo       runningLister
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
	stuckAfter time.Duration
	cron       *cron.Cron
}

type runningLister interface {
	ListRunning(ctx context.Context) ([]*models.WorkflowState, error)
}

func NewSweeper(repo runningLister, publisher eventbus.EventPublisher, stuckAfter time.Duration, logger *slog.Logger) *Sweeper {
	if stuckAfter <= 0 {
		stuckAfter = defaultStuckAfter
	}

	return &Sweeper{
		repo:       repo,
		publisher:  publisher,
		logger:     logger.With("module", "sweeper"),
		stuckAfter: stuckAfter,
		cron:       cron.New(),
	}
}

// Start schedules the sweep once a minute until Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc("@every 1m", func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Sweeper started", "stuck_after", s.stuckAfter)

	return nil
}

// Stop halts the schedule, waiting for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep re-publishes a trigger for every stuck workflow. Exported so the
// worker can run one sweep at startup before the schedule kicks in.
func (s *Sweeper) Sweep(ctx context.Context) {
	states, err := s.repo.ListRunning(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Sweep failed to list running workflows", "error", err)

		return
	}

	for _, state := range states {
		if !s.isStuck(state) {
			continue
		}

		s.logger.WarnContext(ctx, "Re-triggering stuck workflow",
			"tenant_id", state.TenantID, "current_step", state.CurrentStep)

		err = s.publisher.Publish(ctx, state.TenantID, events.NewProvisionTriggered(state.TenantID, state.Plan))
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to re-trigger stuck workflow",
				"tenant_id", state.TenantID, "error", err)
		}
	}
}

func (s *Sweeper) isStuck(state *models.WorkflowState) bool {
	if state.CurrentStep == nil {
		return false
	}

	checkpoint := state.Checkpoint(*state.CurrentStep)
	if checkpoint.StartedAt == nil {
		return false
	}

	return time.Since(*checkpoint.StartedAt) > s.stuckAfter
}
