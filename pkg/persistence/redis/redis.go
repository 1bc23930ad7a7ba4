// Package redis provides Redis-backed state persistence for deployments that
// already run Redis for queueing. Each tenant's state is stored as a JSON
// value under a namespaced key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/persistence"
)

const keyPrefix = "provisio:state:"

// Repository implements persistence.StateRepository on Redis.
type Repository struct {
	client goredis.UniversalClient
}

// NewRepository creates a Redis-backed state repository from a redis:// URL.
func NewRepository(redisURL string) (*Repository, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	return &Repository{client: goredis.NewClient(opts)}, nil
}

// NewRepositoryWithClient wraps an existing client, mainly for tests.
func NewRepositoryWithClient(client goredis.UniversalClient) *Repository {
	return &Repository{client: client}
}

func stateKey(tenantID string) string {
	return keyPrefix + tenantID
}

func (r *Repository) LoadState(ctx context.Context, tenantID string) (*models.WorkflowState, error) {
	body, err := r.client.Get(ctx, stateKey(tenantID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
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

	// No expiry: retention is an external concern.
	err = r.client.Set(ctx, stateKey(state.TenantID), body, 0).Err()
	if err != nil {
		return persistence.NewStateError("SaveState", state.TenantID, err)
	}

	return nil
}

func (r *Repository) ListRunning(ctx context.Context) ([]*models.WorkflowState, error) {
	var (
		running []*models.WorkflowState
		cursor  uint64
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, persistence.NewStateError("ListRunning", "", err)
		}

		for _, key := range keys {
			tenantID := strings.TrimPrefix(key, keyPrefix)

			state, err := r.LoadState(ctx, tenantID)
			if err != nil {
				if persistence.IsStateNotFound(err) {
					continue
				}

				return nil, err
			}

			if state.Status == models.WorkflowStatusRunning {
				running = append(running, state)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return running, nil
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Repository) Close(_ context.Context) error {
	return r.client.Close()
}
