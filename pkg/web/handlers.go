package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/decision"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/registry"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/services"
)

// Handlers bundles the HTTP handlers over the service layer.
type Handlers struct {
	workflows  *services.Workflow
	executions *services.Execution
	tasks      *services.Task
	decisions  *services.Decision
	registry   *registry.Registry
	validator  *validator.Validate
	evalLog    *decision.EvalLog
}

func NewHandlers(
	workflows *services.Workflow,
	executions *services.Execution,
	tasks *services.Task,
	decisions *services.Decision,
	reg *registry.Registry,
	evalLog *decision.EvalLog,
) *Handlers {
	return &Handlers{
		workflows:  workflows,
		executions: executions,
		tasks:      tasks,
		decisions:  decisions,
		registry:   reg,
		validator:  validator.New(validator.WithRequiredStructEnabled()),
		evalLog:    evalLog,
	}
}

func (h *Handlers) HealthCheck(c fiber.Ctx) error {
	message, ok := h.workflows.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if !ok {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// NodeTypes serves the node palette: every registered type with its config
// schema.
func (h *Handlers) NodeTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"node_types": h.registry.NodeSchemas(),
	})
}

func (h *Handlers) ListWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflows.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *Handlers) GetWorkflow(c fiber.Ctx) error {
	definition, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *Handlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.validateNodeConfigs(req.Nodes); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflows.Create(c.Context(), &models.WorkflowDefinition{
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		Triggers:    req.Triggers,
		Variables:   req.Variables,
		Settings:    req.Settings,
		Owner:       req.Owner,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handlers) UpdateWorkflow(c fiber.Ctx) error {
	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.validateNodeConfigs(req.Nodes); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflows.Update(c.Context(), &models.WorkflowDefinition{
		ID:          c.Params("id"),
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		Triggers:    req.Triggers,
		Variables:   req.Variables,
		Settings:    req.Settings,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *Handlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflows.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) PublishWorkflow(c fiber.Ctx) error {
	var req PublishRequest
	_ = c.Bind().JSON(&req)

	published, err := h.workflows.Publish(c.Context(), c.Params("id"), req.PublishedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *Handlers) UnpublishWorkflow(c fiber.Ctx) error {
	draft, err := h.workflows.Unpublish(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(draft)
}

func (h *Handlers) NewDraftVersion(c fiber.Ctx) error {
	draft, err := h.workflows.NewDraftVersion(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(draft)
}

func (h *Handlers) validateNodeConfigs(nodes []*models.Node) error {
	if h.registry == nil {
		return nil
	}

	for _, node := range nodes {
		if err := h.registry.ValidateNodeConfig(node.Type, node.Config); err != nil {
			return err
		}
	}

	return nil
}
