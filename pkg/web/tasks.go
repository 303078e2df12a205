package web

import (
	"github.com/gofiber/fiber/v3"
)

func (h *Handlers) GetTask(c fiber.Ctx) error {
	task, err := h.tasks.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

// ListTasks serves tasks of one execution (?execution_id=...) or, with
// ?overdue=true, all open tasks past their due date.
func (h *Handlers) ListTasks(c fiber.Ctx) error {
	if c.Query("overdue") == "true" {
		tasks, err := h.tasks.ListOverdue(c.Context())
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(fiber.Map{"tasks": tasks})
	}

	executionID := c.Query("execution_id")
	if executionID == "" {
		return badRequest(c, "execution_id query parameter is required")
	}

	tasks, err := h.tasks.ListByExecution(c.Context(), executionID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *Handlers) ClaimTask(c fiber.Ctx) error {
	var req ClaimTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.tasks.Claim(c.Context(), c.Params("id"), req.Actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *Handlers) CompleteTask(c fiber.Ctx) error {
	var req CompleteTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.tasks.Complete(c.Context(), c.Params("id"), req.Actor, req.Outcome, req.Response)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *Handlers) CancelTask(c fiber.Ctx) error {
	var req ClaimTaskRequest
	_ = c.Bind().JSON(&req)

	task, err := h.tasks.Cancel(c.Context(), c.Params("id"), req.Actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}
