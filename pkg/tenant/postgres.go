package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/persistence/sqlbase"
)

// PostgresDirectory implements Directory against the surrounding system's
// PostgreSQL database.
type PostgresDirectory struct {
	db     *sql.DB
	logger *slog.Logger
}

func directoryMigrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS tenants (
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				owner_email   TEXT NOT NULL,
				webhook_url   TEXT,
				routing_ready BOOLEAN NOT NULL DEFAULT FALSE,
				active        BOOLEAN NOT NULL DEFAULT FALSE
			);

			CREATE TABLE IF NOT EXISTS tenant_content (
				tenant_id    TEXT NOT NULL REFERENCES tenants (id),
				key          TEXT NOT NULL,
				title        TEXT NOT NULL,
				body         TEXT,
				scheduled_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (tenant_id, key)
			);

			CREATE TABLE IF NOT EXISTS tenant_automations (
				tenant_id  TEXT PRIMARY KEY REFERENCES tenants (id),
				namespace  TEXT NOT NULL,
				schedule   TEXT NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	}
}

// NewPostgresDirectory connects to the tenant database and runs migrations.
func NewPostgresDirectory(ctx context.Context, logger *slog.Logger, databaseURL string) (*PostgresDirectory, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tenant database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping tenant database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, directoryMigrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run tenant migrations: %w", err)
	}

	return &PostgresDirectory{db: database, logger: logger}, nil
}

func (d *PostgresDirectory) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var (
		t          models.Tenant
		webhookURL sql.NullString
	)

	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, owner_email, webhook_url, routing_ready, active
		FROM tenants WHERE id = $1
	`, tenantID).Scan(&t.ID, &t.Name, &t.OwnerEmail, &webhookURL, &t.RoutingReady, &t.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTenantNotFound
		}

		return nil, fmt.Errorf("failed to load tenant %s: %w", tenantID, err)
	}

	t.WebhookURL = webhookURL.String

	return &t, nil
}

func (d *PostgresDirectory) UpsertContentItem(ctx context.Context, tenantID string, item models.ContentItem) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO tenant_content (tenant_id, key, title, body, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, key)
		DO UPDATE SET title = EXCLUDED.title, body = EXCLUDED.body, scheduled_at = EXCLUDED.scheduled_at
	`, tenantID, item.Key, item.Title, item.Body, item.ScheduledAt)
	if err != nil {
		return fmt.Errorf("failed to upsert content item %s for tenant %s: %w", item.Key, tenantID, err)
	}

	return nil
}

func (d *PostgresDirectory) SetRoutingReady(ctx context.Context, tenantID string, ready bool) error {
	return d.updateTenantFlag(ctx, tenantID, "routing_ready", ready)
}

func (d *PostgresDirectory) UpsertAutomation(ctx context.Context, automation models.Automation) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO tenant_automations (tenant_id, namespace, schedule, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id)
		DO UPDATE SET namespace = EXCLUDED.namespace, schedule = EXCLUDED.schedule, updated_at = NOW()
	`, automation.TenantID, automation.Namespace, automation.Schedule)
	if err != nil {
		return fmt.Errorf("failed to upsert automation for tenant %s: %w", automation.TenantID, err)
	}

	return nil
}

func (d *PostgresDirectory) MarkActive(ctx context.Context, tenantID string, active bool) error {
	return d.updateTenantFlag(ctx, tenantID, "active", active)
}

func (d *PostgresDirectory) updateTenantFlag(ctx context.Context, tenantID, column string, value bool) error {
	// column comes from the two callers above, never from input.
	result, err := d.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE tenants SET %s = $1 WHERE id = $2", column), value, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update tenant %s: %w", tenantID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result for tenant %s: %w", tenantID, err)
	}

	if rows == 0 {
		return ErrTenantNotFound
	}

	return nil
}

// Close closes the database connection.
func (d *PostgresDirectory) Close(_ context.Context) error {
	if d.db != nil {
		return d.db.Close()
	}

	return nil
}
