// Package web provides the read-only HTTP status API over definitions,
// schedule executions and live workflow stages.
package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/chronoflow/chronoflow/pkg/persistence"
	"github.com/chronoflow/chronoflow/pkg/registry"
)

type APIHandlers struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validator   *validator.Validate
}

func NewAPIHandlers(
	persistence persistence.Persistence,
	registry *registry.Registry,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		persistence: persistence,
		registry:    registry,
		validator:   validator,
	}
}

type listDefinitionsRequest struct {
	Active *bool `query:"active" validate:"omitempty"`
}

type workflowStageRequest struct {
	ID int64 `uri:"id" validate:"required,min=1"`
}

// Register mounts all routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/definitions", h.GetDefinitions)
	app.Get("/executions", h.GetExecutions)
	app.Get("/workflows/:id/stage", h.GetWorkflowStage)
	app.Get("/health", h.GetHealth)
}

// GetDefinitions lists workflow definitions, active ones by default.
func (h *APIHandlers) GetDefinitions(c fiber.Ctx) error {
	var req listDefinitionsRequest

	if err := c.Bind().Query(&req); err != nil {
		return badRequest(c, "invalid active parameter: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	definitions, err := h.persistence.Definitions(c.Context(), active)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"definitions": definitions,
		"count":       len(definitions),
	})
}

// GetExecutions lists pending schedule executions sorted by requested start.
func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	executions, err := h.persistence.PendingScheduleExecutions(c.Context())
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"count":      len(executions),
	})
}

// GetWorkflowStage reports the live lifecycle stage of one workflow.
func (h *APIHandlers) GetWorkflowStage(c fiber.Ctx) error {
	var req workflowStageRequest

	if err := c.Bind().URI(&req); err != nil {
		return badRequest(c, "invalid workflow id")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflowID := req.ID

	if !h.registry.ExistsWorkflow(workflowID) {
		return notFound(c, "workflow not registered")
	}

	stage := h.registry.GetStage(workflowID)

	return c.JSON(fiber.Map{
		"workflow_id":   workflowID,
		"stage":         stage,
		"executed_once": h.registry.WasExecutedOnce(workflowID),
	})
}

func (h *APIHandlers) GetHealth(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
