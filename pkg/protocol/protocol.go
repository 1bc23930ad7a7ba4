// Package protocol defines the interfaces implemented by provisioning steps.
package protocol

import (
	"context"

	"github.com/provisio/provisio/pkg/models"
)

// Step is one side-effecting unit of provisioning work. Run must be safe to
// re-execute after a crash: effects are idempotent or checked-before-create.
type Step interface {
	ID() models.StepID
	Run(ctx context.Context, state *models.WorkflowState) error
}
