package file_test

import (
	"context"
	"testing"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/persistence"
	"github.com/provisio/provisio/pkg/persistence/file"
	"github.com/provisio/provisio/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_SaveAndLoad(t *testing.T) {
	t.Parallel()

	repo := file.NewRepository(t.TempDir())
	ctx := context.Background()

	state := models.NewWorkflowState("t1", models.PlanStarter, registry.StepsFor(models.PlanStarter))
	state.Checkpoint(models.StepSeedDefaultContent).Status = models.StepStatusCompleted
	state.Checkpoint(models.StepConfigureRouting).Status = models.StepStatusFailed
	state.Checkpoint(models.StepConfigureRouting).Error = "routing backend unavailable"
	state.Checkpoint(models.StepConfigureRouting).RetryCount = 2
	state.Status = models.WorkflowStatusFailed

	require.NoError(t, repo.SaveState(ctx, state))

	loaded, err := repo.LoadState(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, state.TenantID, loaded.TenantID)
	assert.Equal(t, state.Plan, loaded.Plan)
	assert.Equal(t, state.Steps, loaded.Steps)
	assert.Equal(t, models.WorkflowStatusFailed, loaded.Status)
	assert.Equal(t, models.StepStatusCompleted, loaded.Checkpoint(models.StepSeedDefaultContent).Status)
	assert.Equal(t, "routing backend unavailable", loaded.Checkpoint(models.StepConfigureRouting).Error)
	assert.Equal(t, 2, loaded.Checkpoint(models.StepConfigureRouting).RetryCount)
}

func TestRepository_LoadMissing(t *testing.T) {
	t.Parallel()

	repo := file.NewRepository(t.TempDir())

	_, err := repo.LoadState(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, persistence.IsStateNotFound(err))
}

func TestRepository_SaveOverwrites(t *testing.T) {
	t.Parallel()

	repo := file.NewRepository(t.TempDir())
	ctx := context.Background()

	state := models.NewWorkflowState("t1", models.PlanPro, registry.StepsFor(models.PlanPro))
	require.NoError(t, repo.SaveState(ctx, state))

	state.Status = models.WorkflowStatusCompleted
	require.NoError(t, repo.SaveState(ctx, state))

	loaded, err := repo.LoadState(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, loaded.Status)
}

func TestRepository_FileURLRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo := file.NewRepository("file://" + dir)
	ctx := context.Background()

	state := models.NewWorkflowState("t2", models.PlanStarter, registry.StepsFor(models.PlanStarter))
	require.NoError(t, repo.SaveState(ctx, state))
	require.NoError(t, repo.HealthCheck(ctx))

	loaded, err := repo.LoadState(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "t2", loaded.TenantID)
}
