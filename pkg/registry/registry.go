// Package registry maps subscription plans to their fixed step orderings and
// holds the constructed step implementations.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/protocol"
)

// StepsFor returns the ordered step list for a plan. The switch is
// exhaustive over the closed Plan type, so no plan can ever receive an empty
// or malformed list. The returned slice is a fresh copy.
func StepsFor(plan models.Plan) []models.StepID {
	switch plan {
	case models.PlanStarter:
		return []models.StepID{
			models.StepSeedDefaultContent,
			models.StepConfigureRouting,
			models.StepValidateWebhook,
			models.StepSendOwnerEmail,
			models.StepMarkReady,
		}
	case models.PlanPro:
		return []models.StepID{
			models.StepSeedDefaultContent,
			models.StepConfigureRouting,
			models.StepDeployAutomations,
			models.StepDeployOptionalIntegration,
			models.StepSendOwnerEmail,
			models.StepMarkReady,
		}
	default:
		return nil
	}
}

type Registry struct {
	logger *slog.Logger
	steps  map[models.StepID]protocol.Step
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger: log,
		steps:  make(map[models.StepID]protocol.Step),
	}
}

func (r *Registry) RegisterStep(step protocol.Step) {
	r.steps[step.ID()] = step
}

func (r *Registry) Step(id models.StepID) (protocol.Step, error) {
	step, ok := r.steps[id]
	if !ok {
		return nil, fmt.Errorf("step '%s' not registered", id)
	}

	return step, nil
}
