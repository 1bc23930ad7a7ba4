package services

import (
	"context"
	"log/slog"

	"github.com/provisio/provisio/pkg/eventbus"
	"github.com/provisio/provisio/pkg/events"
	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/persistence"
	"github.com/provisio/provisio/pkg/provision"
	"github.com/provisio/provisio/pkg/registry"
)

// ErrStateNotFound is returned when no workflow state exists for a tenant.
var ErrStateNotFound = persistence.ErrStateNotFound

// Provisioning implements the control surface: enqueue, run-now, status and
// retry, all delegating to the step executor against the state repository.
type Provisioning struct {
	repo      persistence.StateRepository
	executor  *provision.Executor
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewProvisioning(
	repo persistence.StateRepository,
	executor *provision.Executor,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Provisioning {
	return &Provisioning{
		repo:      repo,
		executor:  executor,
		publisher: publisher,
		logger:    logger.With("module", "provisioning_service"),
	}
}

// HealthCheck checks the health of the state repository.
func (p *Provisioning) HealthCheck(ctx context.Context) (string, bool) {
	if p.repo == nil {
		return "State repository not initialized", false
	}

	err := p.repo.HealthCheck(ctx)
	if err != nil {
		return "State repository is unhealthy: " + err.Error(), false
	}

	return "State repository is healthy", true
}

// Enqueue creates the workflow state for a tenant if none exists and asks a
// worker to execute it asynchronously. Enqueue is idempotent: an existing
// state is returned untouched, progress is never reset.
func (p *Provisioning) Enqueue(ctx context.Context, tenantID string, plan models.Plan) (*models.WorkflowState, error) {
	unlock := p.executor.LockTenant(tenantID)
	state, created, err := p.loadOrCreate(ctx, "Enqueue", tenantID, plan)

	unlock()

	if err != nil {
		return nil, err
	}

	if !created {
		p.logger.DebugContext(ctx, "Enqueue found existing state", "tenant_id", tenantID, "status", state.Status)

		return state, nil
	}

	err = p.trigger(ctx, tenantID, plan)
	if err != nil {
		return nil, err
	}

	return state, nil
}

// RunNow creates the workflow state if needed and executes synchronously,
// for manual triggering and testing.
func (p *Provisioning) RunNow(ctx context.Context, tenantID string, plan models.Plan) (*models.WorkflowState, error) {
	unlock := p.executor.LockTenant(tenantID)
	_, _, err := p.loadOrCreate(ctx, "RunNow", tenantID, plan)

	unlock()

	if err != nil {
		return nil, err
	}

	return p.executor.Resume(ctx, tenantID)
}

// GetStatus returns the current workflow state for a tenant.
func (p *Provisioning) GetStatus(ctx context.Context, tenantID string) (*models.WorkflowState, error) {
	if tenantID == "" {
		return nil, NewValidationError("GetStatus", "tenant ID cannot be empty", ErrEmptyTenantID)
	}

	return p.repo.LoadState(ctx, tenantID)
}

// RetryFailed resets every failed checkpoint back to pending, leaves
// completed ones untouched, persists and triggers execution. On a tenant
// with no state it behaves like Enqueue. The reset happens under the
// executor's per-tenant lock so it cannot interleave with an active resume
// and lose its write.
func (p *Provisioning) RetryFailed(ctx context.Context, tenantID string, plan models.Plan) (*models.WorkflowState, error) {
	unlock := p.executor.LockTenant(tenantID)

	state, created, err := p.loadOrCreate(ctx, "RetryFailed", tenantID, plan)
	if err != nil {
		unlock()

		return nil, err
	}

	if !created {
		provision.ResetFailed(state)

		err = p.repo.SaveState(ctx, state)
		if err != nil {
			unlock()

			return nil, err
		}

		p.logger.InfoContext(ctx, "Failed checkpoints reset", "tenant_id", tenantID)
	}

	unlock()

	err = p.trigger(ctx, tenantID, plan)
	if err != nil {
		return nil, err
	}

	return state, nil
}

func (p *Provisioning) loadOrCreate(ctx context.Context, op, tenantID string, plan models.Plan) (*models.WorkflowState, bool, error) {
	if tenantID == "" {
		return nil, false, NewValidationError(op, "tenant ID cannot be empty", ErrEmptyTenantID)
	}

	if !plan.IsValid() {
		return nil, false, NewValidationError(op, "unknown plan: "+string(plan), ErrInvalidPlan)
	}

	state, err := p.repo.LoadState(ctx, tenantID)
	if err == nil {
		return state, false, nil
	}

	if !persistence.IsStateNotFound(err) {
		return nil, false, err
	}

	state = models.NewWorkflowState(tenantID, plan, registry.StepsFor(plan))

	err = p.repo.SaveState(ctx, state)
	if err != nil {
		return nil, false, err
	}

	p.logger.InfoContext(ctx, "Workflow state created", "tenant_id", tenantID, "plan", plan)

	return state, true, nil
}

func (p *Provisioning) trigger(ctx context.Context, tenantID string, plan models.Plan) error {
	err := p.publisher.Publish(ctx, tenantID, events.NewProvisionTriggered(tenantID, plan))
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish provision trigger", "tenant_id", tenantID, "error", err)

		return err
	}

	return nil
}
