// Package main provides the Provisio worker, which consumes provisioning
// triggers and drives workflows to completion.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/provisio/provisio/pkg/eventbus"
	"github.com/provisio/provisio/pkg/events"
	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/otelhelper"
	"github.com/provisio/provisio/pkg/persistence"
	"github.com/provisio/provisio/pkg/provision"
	"github.com/provisio/provisio/pkg/registry"
	"github.com/provisio/provisio/pkg/services"
)

type Worker struct {
	id       string
	repo     persistence.StateRepository
	executor *provision.Executor
	eventBus eventbus.EventBus
	sweeper  *services.Sweeper
	logger   *slog.Logger
}

func NewWorker(
	id string,
	repo persistence.StateRepository,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	stepTimeout time.Duration,
	stuckAfter time.Duration,
	logger *slog.Logger,
) *Worker {
	executorOpts := []provision.ExecutorOption{
		provision.WithStepTimeout(stepTimeout),
	}

	tracer, err := otelhelper.NewTracer(context.Background(), "provisio-worker")
	if err != nil {
		logger.Warn("Tracer initialization failed, spans disabled", "error", err)
	} else {
		executorOpts = append(executorOpts, provision.WithTracer(tracer))
	}

	executor := provision.NewExecutor(repo, reg, logger, executorOpts...)

	return &Worker{
		id:       id,
		repo:     repo,
		executor: executor,
		eventBus: eventBus,
		sweeper:  services.NewSweeper(repo, eventBus, stuckAfter, logger),
		logger:   logger,
	}
}

// Start subscribes to provisioning triggers, runs one recovery sweep for
// workflows orphaned by a previous crash, and blocks until SIGINT/SIGTERM.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := w.eventBus.Handle(events.ProvisionTriggeredEvent, w.handleProvisionTriggered)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		return err
	}

	w.sweeper.Sweep(ctx)

	err = w.sweeper.Start(ctx)
	if err != nil {
		return err
	}
	defer w.sweeper.Stop()

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker")

	return nil
}

func (w *Worker) handleProvisionTriggered(ctx context.Context, event any) error {
	triggered, ok := event.(*events.ProvisionTriggered)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ProvisionTriggered")

		return nil
	}

	logger := w.logger.With("tenant_id", triggered.TenantID, "event_id", triggered.ID)
	logger.InfoContext(ctx, "Processing provision trigger")

	state, err := w.executor.Resume(ctx, triggered.TenantID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to resume workflow", "error", err)

		return err
	}

	w.publishOutcome(ctx, logger, state)

	return nil
}

// publishOutcome emits the lifecycle event for a finished resume. Outcome
// events are informational; publish failures are logged, not retried.
func (w *Worker) publishOutcome(ctx context.Context, logger *slog.Logger, state *models.WorkflowState) {
	var event eventbus.Event

	switch state.Status {
	case models.WorkflowStatusCompleted:
		var duration time.Duration
		if state.StartedAt != nil && state.CompletedAt != nil {
			duration = state.CompletedAt.Sub(*state.StartedAt)
		}

		event = events.NewProvisionCompleted(state.TenantID, duration)
	case models.WorkflowStatusFailed:
		failedStep := models.StepID("")
		if failed := state.FailedSteps(); len(failed) > 0 {
			failedStep = failed[0]
		}

		event = events.NewProvisionFailed(state.TenantID, failedStep, state.Error)
	default:
		return
	}

	err := w.eventBus.Publish(ctx, state.TenantID, event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish workflow outcome", "error", err, "status", state.Status)
	}
}
