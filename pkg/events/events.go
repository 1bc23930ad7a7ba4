// Package events defines event types for provisioning lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/provisio/provisio/pkg/models"
)

type EventType string

// Topic carries all provisioning events.
const Topic = "provisio.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// ProvisionTriggeredEvent asks a worker to resume a tenant's workflow.
	ProvisionTriggeredEvent EventType = "provision.triggered"

	// ProvisionCompletedEvent signals a workflow reached completed.
	ProvisionCompletedEvent EventType = "provision.completed"

	// ProvisionFailedEvent signals a workflow halted on a failed step.
	ProvisionFailedEvent EventType = "provision.failed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	TenantID  string    `json:"tenant_id"`
}

func newBaseEvent(eventType EventType, tenantID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		TenantID:  tenantID,
	}
}

type ProvisionTriggered struct {
	BaseEvent

	Plan models.Plan `json:"plan"`
}

func NewProvisionTriggered(tenantID string, plan models.Plan) *ProvisionTriggered {
	return &ProvisionTriggered{
		BaseEvent: newBaseEvent(ProvisionTriggeredEvent, tenantID),
		Plan:      plan,
	}
}

func (e ProvisionTriggered) GetType() EventType {
	return ProvisionTriggeredEvent
}

type ProvisionCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func NewProvisionCompleted(tenantID string, duration time.Duration) *ProvisionCompleted {
	return &ProvisionCompleted{
		BaseEvent: newBaseEvent(ProvisionCompletedEvent, tenantID),
		Duration:  duration,
	}
}

func (e ProvisionCompleted) GetType() EventType {
	return ProvisionCompletedEvent
}

type ProvisionFailed struct {
	BaseEvent

	FailedStep models.StepID `json:"failed_step"`
	Error      string        `json:"error"`
}

func NewProvisionFailed(tenantID string, failedStep models.StepID, reason string) *ProvisionFailed {
	return &ProvisionFailed{
		BaseEvent:  newBaseEvent(ProvisionFailedEvent, tenantID),
		FailedStep: failedStep,
		Error:      reason,
	}
}

func (e ProvisionFailed) GetType() EventType {
	return ProvisionFailedEvent
}
