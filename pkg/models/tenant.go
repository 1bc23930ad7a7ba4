package models

import "time"

// Tenant is the view of a customer account the provisioning steps read and
// mutate. Full tenant CRUD lives outside this module.
type Tenant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	OwnerEmail   string `json:"owner_email"`
	WebhookURL   string `json:"webhook_url,omitempty"`
	RoutingReady bool   `json:"routing_ready"`
	Active       bool   `json:"active"`
}

// ContentItem is one seeded content row. Key is a deterministic natural key
// so seeding can upsert instead of blind-insert.
type ContentItem struct {
	Key         string     `json:"key"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Automation is the schedule/namespace metadata deployed for pro tenants.
type Automation struct {
	TenantID  string    `json:"tenant_id"`
	Namespace string    `json:"namespace"`
	Schedule  string    `json:"schedule"`
	UpdatedAt time.Time `json:"updated_at"`
}
