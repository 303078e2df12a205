package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/decision"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/persistence"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/services"
	"github.com/Nirvasoft/FlowForge-sub003/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// isPublishRejection matches the structural checks that run at publish time.
func isPublishRejection(err error) bool {
	return errors.Is(err, workflow.ErrNoStartNode) ||
		errors.Is(err, workflow.ErrMultipleStartNodes) ||
		errors.Is(err, workflow.ErrDanglingEdge) ||
		errors.Is(err, workflow.ErrDuplicateNodeID) ||
		errors.Is(err, workflow.ErrArchivedWorkflow) ||
		errors.Is(err, decision.ErrNoInputs) ||
		errors.Is(err, decision.ErrNoOutputs) ||
		errors.Is(err, decision.ErrNoRules) ||
		errors.Is(err, decision.ErrDuplicateName) ||
		errors.Is(err, decision.ErrAlreadyArchived)
}

// handleServiceError maps service layer errors onto RFC 7807 responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case isPublishRejection(err):
		problem := problems.NewStatusProblem(fiber.StatusUnprocessableEntity).
			WithInstance(c.Path()).
			WithType("publish_rejected").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsNotFound(err):
		return notFound(c, err.Error())

	default:
		return internalError(c, err)
	}
}
