// Package postgresql provides PostgreSQL state persistence.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/persistence"
	"github.com/provisio/provisio/pkg/persistence/sqlbase"
)

// Repository implements persistence.StateRepository on PostgreSQL. The state
// document is stored whole as JSONB, keyed by tenant id.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_states (
				tenant_id  TEXT PRIMARY KEY,
				state      JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	}
}

// NewRepository connects to PostgreSQL and runs migrations.
func NewRepository(ctx context.Context, logger *slog.Logger, databaseURL string) (*Repository, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Repository{db: database, logger: logger}, nil
}

func (r *Repository) LoadState(ctx context.Context, tenantID string) (*models.WorkflowState, error) {
	var body []byte

	err := r.db.QueryRowContext(ctx,
		"SELECT state FROM workflow_states WHERE tenant_id = $1", tenantID,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStateError("LoadState", tenantID, persistence.ErrStateNotFound)
		}

		return nil, persistence.NewStateError("LoadState", tenantID, err)
	}

	var state models.WorkflowState

	err = json.Unmarshal(body, &state)
	if err != nil {
		return nil, persistence.NewStateError("LoadState", tenantID, fmt.Errorf("corrupt state record: %w", err))
	}

	return &state, nil
}

func (r *Repository) SaveState(ctx context.Context, state *models.WorkflowState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return persistence.NewStateError("SaveState", state.TenantID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_states (tenant_id, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
	`, state.TenantID, body)
	if err != nil {
		return persistence.NewStateError("SaveState", state.TenantID, err)
	}

	return nil
}

func (r *Repository) ListRunning(ctx context.Context) ([]*models.WorkflowState, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT state FROM workflow_states WHERE state->>'status' = $1",
		string(models.WorkflowStatusRunning))
	if err != nil {
		return nil, persistence.NewStateError("ListRunning", "", err)
	}
	defer func() { _ = rows.Close() }()

	var running []*models.WorkflowState

	for rows.Next() {
		var body []byte

		err = rows.Scan(&body)
		if err != nil {
			return nil, persistence.NewStateError("ListRunning", "", err)
		}

		var state models.WorkflowState

		err = json.Unmarshal(body, &state)
		if err != nil {
			return nil, persistence.NewStateError("ListRunning", "", fmt.Errorf("corrupt state record: %w", err))
		}

		running = append(running, &state)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewStateError("ListRunning", "", err)
	}

	return running, nil
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *Repository) Close(_ context.Context) error {
	if r.db != nil {
		err := r.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
