package models_test

import (
	"testing"

	"github.com/provisio/provisio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func starterSteps() []models.StepID {
	return []models.StepID{
		models.StepSeedDefaultContent,
		models.StepConfigureRouting,
		models.StepValidateWebhook,
		models.StepSendOwnerEmail,
		models.StepMarkReady,
	}
}

func TestNewWorkflowState(t *testing.T) {
	t.Parallel()

	state := models.NewWorkflowState("t1", models.PlanStarter, starterSteps())

	assert.Equal(t, "t1", state.TenantID)
	assert.Equal(t, models.WorkflowStatusIdle, state.Status)
	assert.Nil(t, state.CurrentStep)
	require.Len(t, state.Checkpoints, 5)

	for _, step := range state.Steps {
		assert.Equal(t, models.StepStatusPending, state.Checkpoints[step].Status)
		assert.Zero(t, state.Checkpoints[step].RetryCount)
	}
}

func TestWorkflowState_FirstIncomplete(t *testing.T) {
	t.Parallel()

	state := models.NewWorkflowState("t1", models.PlanStarter, starterSteps())

	step, ok := state.FirstIncomplete()
	require.True(t, ok)
	assert.Equal(t, models.StepSeedDefaultContent, step)

	state.Checkpoint(models.StepSeedDefaultContent).Status = models.StepStatusCompleted
	state.Checkpoint(models.StepConfigureRouting).Status = models.StepStatusFailed

	step, ok = state.FirstIncomplete()
	require.True(t, ok)
	assert.Equal(t, models.StepConfigureRouting, step)

	for _, s := range state.Steps {
		state.Checkpoint(s).Status = models.StepStatusCompleted
	}

	_, ok = state.FirstIncomplete()
	assert.False(t, ok)
	assert.True(t, state.AllCompleted())
}

func TestWorkflowState_FailedSteps(t *testing.T) {
	t.Parallel()

	state := models.NewWorkflowState("t1", models.PlanStarter, starterSteps())
	state.Checkpoint(models.StepConfigureRouting).Status = models.StepStatusFailed
	state.Checkpoint(models.StepMarkReady).Status = models.StepStatusFailed

	assert.Equal(t,
		[]models.StepID{models.StepConfigureRouting, models.StepMarkReady},
		state.FailedSteps())
}

func TestPlan_IsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, models.PlanStarter.IsValid())
	assert.True(t, models.PlanPro.IsValid())
	assert.False(t, models.Plan("enterprise").IsValid())
	assert.False(t, models.Plan("").IsValid())
}
