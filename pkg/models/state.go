// Package models defines the core domain models for tenant provisioning workflows.
package models

import "time"

// Plan is the subscription plan a tenant was created with. It is fixed at
// enqueue time and determines the provisioning step list.
type Plan string

const (
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
)

// IsValid reports whether p is one of the known plans.
func (p Plan) IsValid() bool {
	return p == PlanStarter || p == PlanPro
}

// StepID identifies one provisioning step.
type StepID string

const (
	StepSeedDefaultContent        StepID = "seedDefaultContent"
	StepConfigureRouting          StepID = "configureRouting"
	StepValidateWebhook           StepID = "validateWebhook"
	StepDeployAutomations         StepID = "deployAutomations"
	StepDeployOptionalIntegration StepID = "deployOptionalIntegration"
	StepSendOwnerEmail            StepID = "sendOwnerEmail"
	StepMarkReady                 StepID = "markReady"
)

// StepStatus is the lifecycle state of a single step checkpoint.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// WorkflowStatus is the aggregate lifecycle state of a tenant's workflow.
type WorkflowStatus string

const (
	WorkflowStatusIdle      WorkflowStatus = "idle"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
)

// StepCheckpoint is the persisted record of one step's progress.
type StepCheckpoint struct {
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
}

// WorkflowState is the single persisted entity: one record per tenant holding
// the ordered step list and a checkpoint per step. Steps is computed once
// from Plan and never changes afterward.
type WorkflowState struct {
	TenantID    string                     `json:"tenant_id"`
	Plan        Plan                       `json:"plan"`
	Steps       []StepID                   `json:"steps"`
	Checkpoints map[StepID]*StepCheckpoint `json:"checkpoints"`
	CurrentStep *StepID                    `json:"current_step,omitempty"`
	Status      WorkflowStatus             `json:"status"`
	StartedAt   *time.Time                 `json:"started_at,omitempty"`
	CompletedAt *time.Time                 `json:"completed_at,omitempty"`
	Error       string                     `json:"error,omitempty"`
}

// NewWorkflowState builds the initial idle state for a tenant: every step
// pending, no current step.
func NewWorkflowState(tenantID string, plan Plan, steps []StepID) *WorkflowState {
	checkpoints := make(map[StepID]*StepCheckpoint, len(steps))
	for _, step := range steps {
		checkpoints[step] = &StepCheckpoint{Status: StepStatusPending}
	}

	return &WorkflowState{
		TenantID:    tenantID,
		Plan:        plan,
		Steps:       steps,
		Checkpoints: checkpoints,
		Status:      WorkflowStatusIdle,
	}
}

// Checkpoint returns the checkpoint for the given step, creating a pending
// one if the persisted record predates the step.
func (s *WorkflowState) Checkpoint(step StepID) *StepCheckpoint {
	cp, ok := s.Checkpoints[step]
	if !ok {
		cp = &StepCheckpoint{Status: StepStatusPending}
		s.Checkpoints[step] = cp
	}

	return cp
}

// FirstIncomplete returns the first step in list order whose checkpoint is
// not completed, or false when every step is completed.
func (s *WorkflowState) FirstIncomplete() (StepID, bool) {
	for _, step := range s.Steps {
		if s.Checkpoint(step).Status != StepStatusCompleted {
			return step, true
		}
	}

	return "", false
}

// AllCompleted reports whether every checkpoint is completed.
func (s *WorkflowState) AllCompleted() bool {
	_, ok := s.FirstIncomplete()

	return !ok
}

// FailedSteps returns the steps whose checkpoints are currently failed, in
// list order.
func (s *WorkflowState) FailedSteps() []StepID {
	var failed []StepID

	for _, step := range s.Steps {
		if s.Checkpoint(step).Status == StepStatusFailed {
			failed = append(failed, step)
		}
	}

	return failed
}
