// Package provision implements the checkpointed step executor, the core
// state machine that drives a tenant's workflow from idle to completed.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/otelhelper"
	"github.com/provisio/provisio/pkg/persistence"
	"github.com/provisio/provisio/pkg/registry"
)

const defaultStepTimeout = 2 * time.Minute

// Executor resumes workflows from their first incomplete step. Each step's
// checkpoint is persisted as running before its effect executes, so a crash
// mid-effect shows up on the next resume as a step that started but never
// confirmed completion; step effects are idempotent to make the re-run safe.
type Executor struct {
	repo        persistence.StateRepository
	registry    *registry.Registry
	logger      *slog.Logger
	tracer      trace.Tracer
	stepTimeout time.Duration
	locks       *keyedMutex
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTracer attaches a tracer; without it spans are no-ops.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

// WithStepTimeout bounds each step effect; expiry fails the step with
// reason "step_timeout".
func WithStepTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.stepTimeout = timeout
	}
}

func NewExecutor(repo persistence.StateRepository, reg *registry.Registry, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		repo:        repo,
		registry:    reg,
		logger:      logger.With("module", "executor"),
		tracer:      noop.NewTracerProvider().Tracer("provisio"),
		stepTimeout: defaultStepTimeout,
		locks:       newKeyedMutex(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// LockTenant acquires the per-tenant lock Resume runs under, for callers
// that load-mutate-save a tenant's state outside of a resume. The returned
// func releases it.
func (e *Executor) LockTenant(tenantID string) func() {
	return e.locks.Lock(tenantID)
}

// Resume continues a tenant's workflow from its first incomplete step and
// runs steps in list order until the workflow completes or a step fails.
// Calling Resume on a completed workflow is a no-op, and so is calling it on
// a failed one: a failed workflow stays failed until ResetFailed flips its
// checkpoints back to pending, so a duplicate trigger delivery never
// re-executes a failed step's effect. A step failure is not an error return:
// the failure lives in the returned state. Errors are reserved for
// infrastructure problems (state load/save).
func (e *Executor) Resume(ctx context.Context, tenantID string) (*models.WorkflowState, error) {
	unlock := e.locks.Lock(tenantID)
	defer unlock()

	state, err := e.repo.LoadState(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "provision.resume",
		attribute.String(otelhelper.TenantIDKey, tenantID),
		attribute.String(otelhelper.PlanKey, string(state.Plan)),
	)
	defer span.End()

	logger := e.logger.With("tenant_id", tenantID, "plan", state.Plan)

	if state.Status == models.WorkflowStatusCompleted {
		logger.DebugContext(ctx, "Workflow already completed, nothing to resume")

		return state, nil
	}

	if state.Status == models.WorkflowStatusFailed {
		logger.DebugContext(ctx, "Workflow failed, waiting for explicit retry", "error", state.Error)

		return state, nil
	}

	if state.StartedAt == nil {
		now := time.Now()
		state.StartedAt = &now
	}

	state.Status = models.WorkflowStatusRunning
	state.Error = ""

	for {
		stepID, ok := state.FirstIncomplete()
		if !ok {
			return e.complete(ctx, logger, state)
		}

		checkpoint := state.Checkpoint(stepID)

		// Checkpoint before the side effect: a crash between here and the
		// completion write is visible on the next resume as "was running,
		// did not confirm completion".
		now := time.Now()
		checkpoint.Status = models.StepStatusRunning
		checkpoint.StartedAt = &now
		current := stepID
		state.CurrentStep = &current

		err = e.repo.SaveState(ctx, state)
		if err != nil {
			return nil, err
		}

		logger.InfoContext(ctx, "Executing step", "step", stepID, "retry_count", checkpoint.RetryCount)

		stepErr := e.runStep(ctx, stepID, state)
		if stepErr != nil {
			return e.fail(ctx, logger, span, state, stepID, stepErr)
		}

		completedAt := time.Now()
		checkpoint.Status = models.StepStatusCompleted
		checkpoint.CompletedAt = &completedAt
		checkpoint.Error = ""

		err = e.repo.SaveState(ctx, state)
		if err != nil {
			return nil, err
		}

		logger.InfoContext(ctx, "Step completed", "step", stepID)
	}
}

// runStep executes one step effect under the step timeout, converting
// panics and timeouts into step failures. No error ever escapes uncaught.
func (e *Executor) runStep(ctx context.Context, stepID models.StepID, state *models.WorkflowState) (err error) {
	step, err := e.registry.Step(stepID)
	if err != nil {
		return err
	}

	stepCtx := ctx

	if e.stepTimeout > 0 {
		var cancel context.CancelFunc

		stepCtx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()

	stepCtx, span := otelhelper.StartSpan(stepCtx, e.tracer, "provision.step",
		attribute.String(otelhelper.StepIDKey, string(stepID)),
	)
	defer span.End()

	err = step.Run(stepCtx, state)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.New("step_timeout")
		}

		otelhelper.SetError(span, err)
	}

	return err
}

func (e *Executor) complete(ctx context.Context, logger *slog.Logger, state *models.WorkflowState) (*models.WorkflowState, error) {
	now := time.Now()
	state.Status = models.WorkflowStatusCompleted
	state.CompletedAt = &now
	state.CurrentStep = nil
	state.Error = ""

	err := e.repo.SaveState(ctx, state)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Workflow completed")

	return state, nil
}

func (e *Executor) fail(
	ctx context.Context,
	logger *slog.Logger,
	span trace.Span,
	state *models.WorkflowState,
	stepID models.StepID,
	stepErr error,
) (*models.WorkflowState, error) {
	checkpoint := state.Checkpoint(stepID)
	checkpoint.Status = models.StepStatusFailed
	checkpoint.Error = stepErr.Error()
	checkpoint.RetryCount++

	state.Status = models.WorkflowStatusFailed
	state.Error = fmt.Sprintf("step %s failed: %s", stepID, stepErr)
	state.CurrentStep = nil

	otelhelper.SetError(span, stepErr, attribute.String(otelhelper.StepIDKey, string(stepID)))

	err := e.repo.SaveState(ctx, state)
	if err != nil {
		return nil, err
	}

	logger.ErrorContext(ctx, "Step failed, workflow halted",
		"step", stepID, "error", stepErr, "retry_count", checkpoint.RetryCount)

	return state, nil
}

// ResetFailed flips every failed checkpoint back to pending and the workflow
// back to idle, clearing errors. Completed checkpoints are untouched, so the
// next Resume picks up exactly where the workflow left off. Retry counts are
// kept as a record of past attempts.
func ResetFailed(state *models.WorkflowState) {
	for _, stepID := range state.FailedSteps() {
		checkpoint := state.Checkpoint(stepID)
		checkpoint.Status = models.StepStatusPending
		checkpoint.Error = ""
		checkpoint.StartedAt = nil
	}

	state.Status = models.WorkflowStatusIdle
	state.Error = ""
	state.CurrentStep = nil
}
