// Package web provides HTTP request and response types for the provisioning API.
package web

import (
	"time"

	"github.com/provisio/provisio/pkg/models"
)

// ProvisionRequest represents the request body for queueing, running or
// retrying a tenant provisioning workflow.
type ProvisionRequest struct {
	TenantID string `json:"tenant_id" validate:"required,min=1"`
	Plan     string `json:"plan"      validate:"required,oneof=starter pro"`
}

// StepStatusResponse represents the per-step view of a workflow state.
type StepStatusResponse struct {
	StepID      string     `json:"step_id"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count,omitempty"`
}

// WorkflowStatusResponse represents the full workflow state returned by the
// status endpoint. Steps keep plan order rather than map order.
type WorkflowStatusResponse struct {
	TenantID    string               `json:"tenant_id"`
	Plan        string               `json:"plan"`
	Status      string               `json:"status"`
	CurrentStep *string              `json:"current_step,omitempty"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Error       string               `json:"error,omitempty"`
	Steps       []StepStatusResponse `json:"steps"`
}

// TransformStatusResponse transforms a WorkflowState into its API shape.
func TransformStatusResponse(state *models.WorkflowState) WorkflowStatusResponse {
	response := WorkflowStatusResponse{
		TenantID:    state.TenantID,
		Plan:        string(state.Plan),
		Status:      string(state.Status),
		StartedAt:   state.StartedAt,
		CompletedAt: state.CompletedAt,
		Error:       state.Error,
		Steps:       make([]StepStatusResponse, 0, len(state.Steps)),
	}

	if state.CurrentStep != nil {
		current := string(*state.CurrentStep)
		response.CurrentStep = &current
	}

	for _, stepID := range state.Steps {
		checkpoint := state.Checkpoints[stepID]
		step := StepStatusResponse{
			StepID: string(stepID),
			Status: string(models.StepStatusPending),
		}

		if checkpoint != nil {
			step.Status = string(checkpoint.Status)
			step.StartedAt = checkpoint.StartedAt
			step.CompletedAt = checkpoint.CompletedAt
			step.Error = checkpoint.Error
			step.RetryCount = checkpoint.RetryCount
		}

		response.Steps = append(response.Steps, step)
	}

	return response
}
