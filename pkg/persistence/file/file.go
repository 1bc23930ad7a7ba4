// Package file provides file-based state persistence, one JSON document per
// tenant. Writes go through a temp file and rename so a crash mid-write never
// leaves a torn record.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/persistence"
)

const stateDir = "states"

// Repository implements persistence.StateRepository on the local filesystem.
type Repository struct {
	root string
}

// NewRepository creates a file-backed state repository rooted at the given
// directory. Accepts a plain path or a file:// URL.
func NewRepository(root string) *Repository {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Repository{root: cleanRoot}
}

func (r *Repository) statePath(tenantID string) string {
	return filepath.Join(r.root, stateDir, tenantID+".json")
}

func (r *Repository) LoadState(ctx context.Context, tenantID string) (*models.WorkflowState, error) {
	body, err := os.ReadFile(r.statePath(tenantID))
	if err != nil {
		if os.IsNotExist(err) {
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
	dir := filepath.Join(r.root, stateDir)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return persistence.NewStateError("SaveState", state.TenantID, err)
	}

	body, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return persistence.NewStateError("SaveState", state.TenantID, err)
	}

	tmp, err := os.CreateTemp(dir, state.TenantID+".*.tmp")
	if err != nil {
		return persistence.NewStateError("SaveState", state.TenantID, err)
	}

	_, err = tmp.Write(body)
	if err == nil {
		err = tmp.Sync()
	}

	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return persistence.NewStateError("SaveState", state.TenantID, err)
	}

	err = os.Rename(tmp.Name(), r.statePath(state.TenantID))
	if err != nil {
		_ = os.Remove(tmp.Name())

		return persistence.NewStateError("SaveState", state.TenantID, err)
	}

	return nil
}

func (r *Repository) ListRunning(ctx context.Context) ([]*models.WorkflowState, error) {
	dir := filepath.Join(r.root, stateDir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewStateError("ListRunning", "", err)
	}

	var running []*models.WorkflowState

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		state, err := r.LoadState(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}

		if state.Status == models.WorkflowStatusRunning {
			running = append(running, state)
		}
	}

	return running, nil
}

func (r *Repository) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(r.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (r *Repository) Close(_ context.Context) error {
	return nil
}
