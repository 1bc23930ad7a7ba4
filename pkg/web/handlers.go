package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/provisio/provisio/pkg/models"
	"github.com/provisio/provisio/pkg/persistence"
	"github.com/provisio/provisio/pkg/services"
)

var errInvalidJSON = errors.New("Invalid JSON format")

type APIHandlers struct {
	provisioning *services.Provisioning
	validator    *validator.Validate
}

func NewAPIHandlers(provisioning *services.Provisioning, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		provisioning: provisioning,
		validator:    validator,
	}
}

// QueueProvision creates the workflow state and hands execution to a worker.
// Replaying the request for an existing tenant is a no-op.
func (h *APIHandlers) QueueProvision(c fiber.Ctx) error {
	req, err := h.parseProvisionRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	state, err := h.provisioning.Enqueue(c.Context(), req.TenantID, models.Plan(req.Plan))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(TransformStatusResponse(state))
}

// RunProvision executes the workflow synchronously and returns the final
// state, including a failed one. Step failures are workflow outcomes, not
// transport errors.
func (h *APIHandlers) RunProvision(c fiber.Ctx) error {
	req, err := h.parseProvisionRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	state, err := h.provisioning.RunNow(c.Context(), req.TenantID, models.Plan(req.Plan))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformStatusResponse(state))
}

func (h *APIHandlers) GetProvisionStatus(c fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return badRequest(c, "tenant_id query parameter is required")
	}

	state, err := h.provisioning.GetStatus(c.Context(), tenantID)
	if err != nil {
		if persistence.IsStateNotFound(err) {
			return notFound(c, "no provisioning workflow for tenant")
		}

		return handleServiceError(c, err)
	}

	return c.JSON(TransformStatusResponse(state))
}

// RetryProvision resets failed checkpoints to pending and re-queues the
// workflow. Completed checkpoints keep their status.
func (h *APIHandlers) RetryProvision(c fiber.Ctx) error {
	req, err := h.parseProvisionRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	state, err := h.provisioning.RetryFailed(c.Context(), req.TenantID, models.Plan(req.Plan))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformStatusResponse(state))
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.provisioning.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Provisio API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Provisio API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) parseProvisionRequest(c fiber.Ctx) (*ProvisionRequest, error) {
	var req ProvisionRequest

	err := c.Bind().JSON(&req)
	if err != nil {
		return nil, errInvalidJSON
	}

	err = h.validator.Struct(req)
	if err != nil {
		return nil, err
	}

	return &req, nil
}
