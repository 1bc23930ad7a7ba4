package provision_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/provisio/provisio/pkg/mailer"
	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/persistence"
	"github.com/provisio/provisio/pkg/persistence/file"
	"github.com/provisio/provisio/pkg/protocol"
	"github.com/provisio/provisio/pkg/provision"
	"github.com/provisio/provisio/pkg/registry"
	"github.com/provisio/provisio/pkg/steps"
	"github.com/provisio/provisio/pkg/tenant"
	"github.com/provisio/provisio/pkg/token"
	"github.com/provisio/provisio/pkg/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// recorder captures the order in which step effects actually execute.
type recorder struct {
	mu  sync.Mutex
	ran []models.StepID
}

func (r *recorder) record(id models.StepID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ran = append(r.ran, id)
}

func (r *recorder) executed() []models.StepID {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]models.StepID(nil), r.ran...)
}

// recordedStep wraps a step and records each Run.
type recordedStep struct {
	inner protocol.Step
	rec   *recorder
}

func (s recordedStep) ID() models.StepID { return s.inner.ID() }

func (s recordedStep) Run(ctx context.Context, state *models.WorkflowState) error {
	s.rec.record(s.inner.ID())

	return s.inner.Run(ctx, state)
}

// stubStep runs an arbitrary function.
type stubStep struct {
	id  models.StepID
	run func(ctx context.Context, state *models.WorkflowState) error
}

func (s stubStep) ID() models.StepID { return s.id }

func (s stubStep) Run(ctx context.Context, state *models.WorkflowState) error {
	return s.run(ctx, state)
}

type fixture struct {
	executor  *provision.Executor
	repo      *file.Repository
	directory *tenant.MemoryDirectory
	sender    *mailer.RecordingSender
	rec       *recorder
}

// newFixture wires a full executor against in-memory collaborators and a
// file state repository, with every real step wrapped by the recorder.
func newFixture(t *testing.T, webhookURL string) *fixture {
	t.Helper()

	logger := slog.Default()
	repo := file.NewRepository(t.TempDir())

	directory := tenant.NewMemoryDirectory()
	directory.PutTenant(models.Tenant{
		ID:         "t1",
		Name:       "Acme",
		OwnerEmail: "owner@acme.test",
		WebhookURL: webhookURL,
	})

	issuer, err := token.NewIssuer(testSecret)
	require.NoError(t, err)

	sender := mailer.NewRecordingSender()
	validator := webhook.NewValidator(logger)

	rec := &recorder{}
	reg := registry.NewRegistry(logger)

	all := []protocol.Step{
		steps.NewSeedContent(directory, logger),
		steps.NewConfigureRouting(directory, logger),
		steps.NewValidateWebhook(directory, validator, logger),
		steps.NewDeployAutomations(directory, logger),
		steps.NewDeployOptionalIntegration(directory, true, logger),
		steps.NewSendOwnerEmail(directory, issuer, sender, "https://app.example.com/login", time.Hour, logger),
		steps.NewMarkReady(directory, logger),
	}
	for _, step := range all {
		reg.RegisterStep(recordedStep{inner: step, rec: rec})
	}

	return &fixture{
		executor:  provision.NewExecutor(repo, reg, logger),
		repo:      repo,
		directory: directory,
		sender:    sender,
		rec:       rec,
	}
}

func (f *fixture) enqueue(t *testing.T, plan models.Plan) *models.WorkflowState {
	t.Helper()

	state := models.NewWorkflowState("t1", plan, registry.StepsFor(plan))
	require.NoError(t, f.repo.SaveState(context.Background(), state))

	return state
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestExecutor_HappyPathStarter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okServer(t).URL)
	f.enqueue(t, models.PlanStarter)

	state, err := f.executor.Resume(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusCompleted, state.Status)
	assert.Nil(t, state.CurrentStep)
	require.NotNil(t, state.CompletedAt)

	for _, stepID := range state.Steps {
		cp := state.Checkpoint(stepID)
		assert.Equal(t, models.StepStatusCompleted, cp.Status, "step %s", stepID)
		assert.NotNil(t, cp.CompletedAt, "step %s", stepID)
	}

	// Exactly the starter sequence, in order.
	assert.Equal(t, registry.StepsFor(models.PlanStarter), f.rec.executed())

	// Effects landed on the collaborators.
	loaded, err := f.directory.GetTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, loaded.RoutingReady)
	assert.True(t, loaded.Active)
	assert.Len(t, f.sender.Sends(), 1)

	// And the final state is durable.
	persisted, err := f.repo.LoadState(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, persisted.Status)
}

func TestExecutor_OrderingInvariantPro(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okServer(t).URL)
	f.enqueue(t, models.PlanPro)

	state, err := f.executor.Resume(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusCompleted, state.Status)
	assert.Equal(t, registry.StepsFor(models.PlanPro), f.rec.executed())
}

func TestExecutor_ResumeSkipsCompletedSteps(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okServer(t).URL)
	state := f.enqueue(t, models.PlanStarter)

	// Step 1 already completed; resume must execute only step 2 onward.
	now := time.Now()
	cp := state.Checkpoint(models.StepSeedDefaultContent)
	cp.Status = models.StepStatusCompleted
	cp.CompletedAt = &now
	require.NoError(t, f.repo.SaveState(context.Background(), state))

	resumed, err := f.executor.Resume(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusCompleted, resumed.Status)
	assert.Equal(t, []models.StepID{
		models.StepConfigureRouting,
		models.StepValidateWebhook,
		models.StepSendOwnerEmail,
		models.StepMarkReady,
	}, f.rec.executed())
}

func TestExecutor_CompletedResumeIsNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okServer(t).URL)
	f.enqueue(t, models.PlanStarter)

	first, err := f.executor.Resume(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusCompleted, first.Status)

	ranOnce := f.rec.executed()

	second, err := f.executor.Resume(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusCompleted, second.Status)
	assert.Equal(t, first.CompletedAt.Unix(), second.CompletedAt.Unix())
	// No step effect ran again.
	assert.Equal(t, ranOnce, f.rec.executed())
}

func TestExecutor_StepFailureHaltsWorkflow(t *testing.T) {
	t.Parallel()

	// Webhook answers 500 on every probe: validateWebhook must fail and no
	// later step may run.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	f := newFixture(t, server.URL)
	f.enqueue(t, models.PlanStarter)

	state, err := f.executor.Resume(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
	assert.Nil(t, state.CurrentStep)
	assert.Contains(t, state.Error, "validateWebhook")
	assert.Contains(t, state.Error, "webhook_unreachable:500")

	cp := state.Checkpoint(models.StepValidateWebhook)
	assert.Equal(t, models.StepStatusFailed, cp.Status)
	assert.Equal(t, "webhook_unreachable:500", cp.Error)
	assert.Equal(t, 1, cp.RetryCount)

	assert.Equal(t, models.StepStatusPending, state.Checkpoint(models.StepSendOwnerEmail).Status)
	assert.Equal(t, models.StepStatusPending, state.Checkpoint(models.StepMarkReady).Status)
	assert.Equal(t, []models.StepID{
		models.StepSeedDefaultContent,
		models.StepConfigureRouting,
		models.StepValidateWebhook,
	}, f.rec.executed())

	// Without an explicit reset the workflow stays failed: a second resume
	// (duplicate trigger delivery, sweeper race) must not re-execute the
	// failed step's effect or bump its retry count.
	ranBefore := f.rec.executed()

	again, err := f.executor.Resume(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, again.Status)
	assert.Equal(t, 1, again.Checkpoint(models.StepValidateWebhook).RetryCount)
	assert.Equal(t, ranBefore, f.rec.executed())
}

func TestExecutor_RetryAfterFailureCompletes(t *testing.T) {
	t.Parallel()

	// Endpoint starts broken and gets fixed before the retry.
	var healthy bool

	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		ok := healthy
		mu.Unlock()

		if ok {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	f := newFixture(t, server.URL)
	f.enqueue(t, models.PlanStarter)

	state, err := f.executor.Resume(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusFailed, state.Status)

	mu.Lock()
	healthy = true
	mu.Unlock()

	provision.ResetFailed(state)
	assert.Equal(t, models.WorkflowStatusIdle, state.Status)
	assert.Equal(t, models.StepStatusPending, state.Checkpoint(models.StepValidateWebhook).Status)
	assert.Empty(t, state.Checkpoint(models.StepValidateWebhook).Error)
	// Completed checkpoints untouched.
	assert.Equal(t, models.StepStatusCompleted, state.Checkpoint(models.StepSeedDefaultContent).Status)
	require.NoError(t, f.repo.SaveState(context.Background(), state))

	final, err := f.executor.Resume(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, final.Status)

	// seedDefaultContent and configureRouting ran exactly once across both
	// resumes; validateWebhook ran twice (failure + retry).
	executed := f.rec.executed()
	assert.Equal(t, []models.StepID{
		models.StepSeedDefaultContent,
		models.StepConfigureRouting,
		models.StepValidateWebhook,
		models.StepValidateWebhook,
		models.StepSendOwnerEmail,
		models.StepMarkReady,
	}, executed)
}

func newStubExecutor(t *testing.T, repo *file.Repository, stub protocol.Step, opts ...provision.ExecutorOption) *provision.Executor {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterStep(stub)

	return provision.NewExecutor(repo, reg, slog.Default(), opts...)
}

func singleStepState(t *testing.T, repo *file.Repository, id models.StepID) {
	t.Helper()

	state := models.NewWorkflowState("t1", models.PlanStarter, []models.StepID{id})
	require.NoError(t, repo.SaveState(context.Background(), state))
}

func TestExecutor_StepTimeout(t *testing.T) {
	t.Parallel()

	repo := file.NewRepository(t.TempDir())
	slow := stubStep{
		id: models.StepConfigureRouting,
		run: func(ctx context.Context, _ *models.WorkflowState) error {
			<-ctx.Done()

			return ctx.Err()
		},
	}

	executor := newStubExecutor(t, repo, slow, provision.WithStepTimeout(50*time.Millisecond))
	singleStepState(t, repo, models.StepConfigureRouting)

	state, err := executor.Resume(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
	assert.Equal(t, "step_timeout", state.Checkpoint(models.StepConfigureRouting).Error)
}

func TestExecutor_StepPanicBecomesFailedCheckpoint(t *testing.T) {
	t.Parallel()

	repo := file.NewRepository(t.TempDir())
	panicky := stubStep{
		id: models.StepConfigureRouting,
		run: func(_ context.Context, _ *models.WorkflowState) error {
			panic("routing table corrupted")
		},
	}

	executor := newStubExecutor(t, repo, panicky)
	singleStepState(t, repo, models.StepConfigureRouting)

	state, err := executor.Resume(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusFailed, state.Status)
	assert.Contains(t, state.Checkpoint(models.StepConfigureRouting).Error, "routing table corrupted")
}

func TestExecutor_CrashMidStepResumesAndReruns(t *testing.T) {
	t.Parallel()

	// Simulate a crash after the running checkpoint was persisted but
	// before the effect confirmed: the persisted state has the step
	// running. A fresh resume must re-attempt that step.
	repo := file.NewRepository(t.TempDir())

	var runs int

	var mu sync.Mutex

	step := stubStep{
		id: models.StepConfigureRouting,
		run: func(_ context.Context, _ *models.WorkflowState) error {
			mu.Lock()
			runs++
			mu.Unlock()

			return nil
		},
	}

	state := models.NewWorkflowState("t1", models.PlanStarter, []models.StepID{models.StepConfigureRouting})
	now := time.Now()
	cp := state.Checkpoint(models.StepConfigureRouting)
	cp.Status = models.StepStatusRunning
	cp.StartedAt = &now
	state.Status = models.WorkflowStatusRunning
	current := models.StepConfigureRouting
	state.CurrentStep = &current
	require.NoError(t, repo.SaveState(context.Background(), state))

	executor := newStubExecutor(t, repo, step)

	resumed, err := executor.Resume(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusCompleted, resumed.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, runs)
}

func TestExecutor_MissingStateIsError(t *testing.T) {
	t.Parallel()

	repo := file.NewRepository(t.TempDir())
	executor := newStubExecutor(t, repo, stubStep{
		id:  models.StepConfigureRouting,
		run: func(_ context.Context, _ *models.WorkflowState) error { return nil },
	})

	_, err := executor.Resume(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, persistence.IsStateNotFound(err))
}
