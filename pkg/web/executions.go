package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
)

func (h *Handlers) StartExecution(c fiber.Ctx) error {
	var req StartExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	execution, err := h.executions.Start(c.Context(), c.Params("id"), req.TriggerType, req.TriggeredBy, req.Input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}

func (h *Handlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.executions.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// ListExecutions serves executions of one workflow, optionally filtered by
// status through the ?status query parameter.
func (h *Handlers) ListExecutions(c fiber.Ctx) error {
	executions, err := h.executions.ListByWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if status := c.Query("status"); status != "" {
		filtered := executions[:0]

		for _, execution := range executions {
			if execution.Status == models.ExecutionStatus(status) {
				filtered = append(filtered, execution)
			}
		}

		executions = filtered
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *Handlers) ResumeExecution(c fiber.Ctx) error {
	var req ResumeExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.executions.Resume(c.Context(), c.Params("id"), req.NodeID, req.Data)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *Handlers) PauseExecution(c fiber.Ctx) error {
	execution, err := h.executions.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *Handlers) CancelExecution(c fiber.Ctx) error {
	var req CancelExecutionRequest
	_ = c.Bind().JSON(&req)

	execution, err := h.executions.Cancel(c.Context(), c.Params("id"), req.CancelledBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}
