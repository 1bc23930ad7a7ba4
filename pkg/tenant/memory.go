package tenant

import (
	"context"
	"sync"

	"github.com/provisio/provisio/pkg/models"
)

// MemoryDirectory is an in-memory Directory for tests and local development.
type MemoryDirectory struct {
	mu          sync.RWMutex
	tenants     map[string]*models.Tenant
	content     map[string]map[string]models.ContentItem
	automations map[string]models.Automation
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		tenants:     make(map[string]*models.Tenant),
		content:     make(map[string]map[string]models.ContentItem),
		automations: make(map[string]models.Automation),
	}
}

// PutTenant registers a tenant row. Tenant creation itself is outside the
// provisioning workflow; tests and dev seeding use this.
func (d *MemoryDirectory) PutTenant(t models.Tenant) {
	d.mu.Lock()
	defer d.mu.Unlock()

	copied := t
	d.tenants[t.ID] = &copied
}

func (d *MemoryDirectory) GetTenant(_ context.Context, tenantID string) (*models.Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tenants[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}

	copied := *t

	return &copied, nil
}

func (d *MemoryDirectory) UpsertContentItem(_ context.Context, tenantID string, item models.ContentItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tenants[tenantID]; !ok {
		return ErrTenantNotFound
	}

	items, ok := d.content[tenantID]
	if !ok {
		items = make(map[string]models.ContentItem)
		d.content[tenantID] = items
	}

	items[item.Key] = item

	return nil
}

func (d *MemoryDirectory) SetRoutingReady(_ context.Context, tenantID string, ready bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tenants[tenantID]
	if !ok {
		return ErrTenantNotFound
	}

	t.RoutingReady = ready

	return nil
}

func (d *MemoryDirectory) UpsertAutomation(_ context.Context, automation models.Automation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tenants[automation.TenantID]; !ok {
		return ErrTenantNotFound
	}

	d.automations[automation.TenantID] = automation

	return nil
}

func (d *MemoryDirectory) MarkActive(_ context.Context, tenantID string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tenants[tenantID]
	if !ok {
		return ErrTenantNotFound
	}

	t.Active = active

	return nil
}

// ContentItems returns the seeded items for a tenant, for test assertions.
func (d *MemoryDirectory) ContentItems(tenantID string) []models.ContentItem {
	d.mu.RLock()
	defer d.mu.RUnlock()

	items := make([]models.ContentItem, 0, len(d.content[tenantID]))
	for _, item := range d.content[tenantID] {
		items = append(items, item)
	}

	return items
}

// Automation returns the deployed automation metadata for a tenant.
func (d *MemoryDirectory) Automation(tenantID string) (models.Automation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.automations[tenantID]

	return a, ok
}
