package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provisio/provisio/pkg/eventbus"
	"github.com/provisio/provisio/pkg/mailer"
	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/persistence/file"
	"github.com/provisio/provisio/pkg/provision"
	"github.com/provisio/provisio/pkg/registry"
	"github.com/provisio/provisio/pkg/services"
	"github.com/provisio/provisio/pkg/steps"
	"github.com/provisio/provisio/pkg/tenant"
	"github.com/provisio/provisio/pkg/token"
	"github.com/provisio/provisio/pkg/web"
	"github.com/provisio/provisio/pkg/webhook"
)

type nullPublisher struct {
	mu    sync.Mutex
	count int
}

func (p *nullPublisher) Publish(_ context.Context, _ string, _ eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count++

	return nil
}

func setupTestApp(t *testing.T) (*fiber.App, *nullPublisher) {
	t.Helper()

	logger := slog.Default()
	repo := file.NewRepository(t.TempDir())

	webhookServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(webhookServer.Close)

	directory := tenant.NewMemoryDirectory()
	directory.PutTenant(models.Tenant{
		ID:         "tenant-1",
		Name:       "Acme",
		OwnerEmail: "owner@acme.test",
		WebhookURL: webhookServer.URL,
	})

	issuer, err := token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	reg := registry.NewRegistry(logger)
	reg.RegisterStep(steps.NewSeedContent(directory, logger))
	reg.RegisterStep(steps.NewConfigureRouting(directory, logger))
	reg.RegisterStep(steps.NewValidateWebhook(directory, webhook.NewValidator(logger), logger))
	reg.RegisterStep(steps.NewDeployAutomations(directory, logger))
	reg.RegisterStep(steps.NewDeployOptionalIntegration(directory, true, logger))
	reg.RegisterStep(steps.NewSendOwnerEmail(directory, issuer, mailer.NewRecordingSender(),
		"https://app.example.com/login", time.Hour, logger))
	reg.RegisterStep(steps.NewMarkReady(directory, logger))

	executor := provision.NewExecutor(repo, reg, logger)
	publisher := &nullPublisher{}
	provisioning := services.NewProvisioning(repo, executor, publisher, logger)

	handlers := web.NewAPIHandlers(provisioning, validator.New(validator.WithRequiredStructEnabled()))
	app := fiber.New()

	p := app.Group("/provision")
	p.Post("/queue", handlers.QueueProvision)
	p.Post("/run", handlers.RunProvision)
	p.Get("/status", handlers.GetProvisionStatus)
	p.Post("/retry", handlers.RetryProvision)
	app.Get("/health", handlers.HealthCheck)

	return app, publisher
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		if str, ok := body.(string); ok {
			reader = bytes.NewReader([]byte(str))
		} else {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(encoded)
		}
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, payload
}

func TestAPIHandlers_QueueProvision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "accepted",
			requestBody:    web.ProvisionRequest{TenantID: "tenant-1", Plan: "starter"},
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "missing tenant id",
			requestBody:    web.ProvisionRequest{Plan: "starter"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown plan",
			requestBody:    web.ProvisionRequest{TenantID: "tenant-1", Plan: "enterprise"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			resp, payload := doJSON(t, app, http.MethodPost, "/provision/queue", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusAccepted {
				var status web.WorkflowStatusResponse
				require.NoError(t, json.Unmarshal(payload, &status))
				assert.Equal(t, "tenant-1", status.TenantID)
				assert.Equal(t, string(models.WorkflowStatusIdle), status.Status)
				assert.Len(t, status.Steps, 5)
			}
		})
	}
}

func TestAPIHandlers_QueueProvisionIsIdempotent(t *testing.T) {
	t.Parallel()

	app, publisher := setupTestApp(t)
	body := web.ProvisionRequest{TenantID: "tenant-1", Plan: "starter"}

	resp, _ := doJSON(t, app, http.MethodPost, "/provision/queue", body)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/provision/queue", body)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	assert.Equal(t, 1, publisher.count)
}

func TestAPIHandlers_RunProvision(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, payload := doJSON(t, app, http.MethodPost, "/provision/run",
		web.ProvisionRequest{TenantID: "tenant-1", Plan: "pro"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status web.WorkflowStatusResponse
	require.NoError(t, json.Unmarshal(payload, &status))
	assert.Equal(t, string(models.WorkflowStatusCompleted), status.Status)
	assert.Len(t, status.Steps, 6)

	for _, step := range status.Steps {
		assert.Equal(t, string(models.StepStatusCompleted), step.Status, step.StepID)
	}
}

func TestAPIHandlers_GetProvisionStatus(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/provision/status?tenant_id=tenant-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/provision/status", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/provision/queue",
		web.ProvisionRequest{TenantID: "tenant-1", Plan: "starter"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, payload := doJSON(t, app, http.MethodGet, "/provision/status?tenant_id=tenant-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status web.WorkflowStatusResponse
	require.NoError(t, json.Unmarshal(payload, &status))
	assert.Equal(t, "tenant-1", status.TenantID)
	assert.Equal(t, "starter", status.Plan)
}

func TestAPIHandlers_RetryProvision(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, payload := doJSON(t, app, http.MethodPost, "/provision/retry",
		web.ProvisionRequest{TenantID: "tenant-1", Plan: "starter"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status web.WorkflowStatusResponse
	require.NoError(t, json.Unmarshal(payload, &status))
	assert.Equal(t, string(models.WorkflowStatusIdle), status.Status)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, payload := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.Unmarshal(payload, &health))
	assert.Equal(t, "healthy", health["status"])
}
