// Package tenant defines the relational-store collaborator the provisioning
// steps talk to, plus in-memory and PostgreSQL implementations.
package tenant

import (
	"context"
	"errors"

	"github.com/provisio/provisio/pkg/models"
)

// ErrTenantNotFound indicates no tenant row exists for the given identifier.
var ErrTenantNotFound = errors.New("tenant not found")

// Directory is the narrow query interface provisioning steps use against the
// surrounding system's relational store.
type Directory interface {
	GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error)
	UpsertContentItem(ctx context.Context, tenantID string, item models.ContentItem) error
	SetRoutingReady(ctx context.Context, tenantID string, ready bool) error
	UpsertAutomation(ctx context.Context, automation models.Automation) error
	MarkActive(ctx context.Context, tenantID string, active bool) error
}

// IsTenantNotFound checks if an error indicates a missing tenant.
func IsTenantNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound)
}
