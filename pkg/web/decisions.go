package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/models"
)

func (h *Handlers) ListTables(c fiber.Ctx) error {
	tables, err := h.decisions.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"decision_tables": tables})
}

func (h *Handlers) GetTable(c fiber.Ctx) error {
	table, err := h.decisions.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(table)
}

func (h *Handlers) CreateTable(c fiber.Ctx) error {
	var req CreateTableRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.decisions.Create(c.Context(), &models.DecisionTable{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Inputs:      req.Inputs,
		Outputs:     req.Outputs,
		Rules:       req.Rules,
		HitPolicy:   req.HitPolicy,
		Settings:    req.Settings,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handlers) UpdateTable(c fiber.Ctx) error {
	var req CreateTableRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.decisions.Update(c.Context(), &models.DecisionTable{
		ID:          c.Params("id"),
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Inputs:      req.Inputs,
		Outputs:     req.Outputs,
		Rules:       req.Rules,
		HitPolicy:   req.HitPolicy,
		Settings:    req.Settings,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *Handlers) DeleteTable(c fiber.Ctx) error {
	if err := h.decisions.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) PublishTable(c fiber.Ctx) error {
	var req PublishRequest
	_ = c.Bind().JSON(&req)

	published, err := h.decisions.Publish(c.Context(), c.Params("id"), req.PublishedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *Handlers) UnpublishTable(c fiber.Ctx) error {
	draft, err := h.decisions.Unpublish(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(draft)
}

// EvaluateTable runs a table by id or slug against the request inputs.
func (h *Handlers) EvaluateTable(c fiber.Ctx) error {
	var req EvaluateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	source := req.Source
	if source == "" {
		source = "api"
	}

	result, err := h.decisions.EvaluateTable(c.Context(), c.Params("id"), req.Inputs, source)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// EvalLogEntries serves the recent evaluation audit log.
func (h *Handlers) EvalLogEntries(c fiber.Ctx) error {
	if h.evalLog == nil {
		return c.JSON(fiber.Map{"entries": []any{}})
	}

	return c.JSON(fiber.Map{"entries": h.evalLog.Entries()})
}
