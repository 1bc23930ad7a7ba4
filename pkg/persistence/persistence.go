// Package persistence provides the storage abstraction for workflow state
// checkpoints.
package persistence

import (
	"context"

	"github.com/provisio/provisio/pkg/models"
)

// StateRepository persists one WorkflowState record per tenant. SaveState is
// a full overwrite; last-writer-wins is acceptable because the executor
// serializes access per tenant. A SaveState that returns nil must survive a
// process restart immediately afterward.
type StateRepository interface {
	LoadState(ctx context.Context, tenantID string) (*models.WorkflowState, error)
	SaveState(ctx context.Context, state *models.WorkflowState) error

	// ListRunning returns every state whose overall status is running. The
	// sweeper uses it to find workflows orphaned by a crash mid-step.
	ListRunning(ctx context.Context) ([]*models.WorkflowState, error)

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
