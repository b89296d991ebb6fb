package web

import (
	"errors"

	"github.com/dukex/refiner/pkg/graph"
	"github.com/dukex/refiner/pkg/guard"
	"github.com/dukex/refiner/pkg/persistence"
	"github.com/dukex/refiner/pkg/refinement"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// Problem types returned in the "type" member of error responses.
const (
	problemValidation       = "validation_error"
	problemWorkflowNotFound = "workflow_not_found"
	problemStructural       = "structural_failure"
	problemGuardDenied      = "recursion_denied"
	problemInternal         = "internal_error"
)

func respond(c fiber.Ctx, status int, kind string, detail string) error {
	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(status).JSON(problem)
}

func badRequest(c fiber.Ctx, detail string) error {
	return respond(c, fiber.StatusBadRequest, problemValidation, detail)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType(problemInternal).
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleError maps domain errors onto problem responses.
func handleError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return respond(c, fiber.StatusNotFound, problemWorkflowNotFound, "workflow not found")
	case errors.Is(err, persistence.ErrInvalidID),
		errors.Is(err, persistence.ErrInvalidSortField),
		errors.Is(err, refinement.ErrNilWorkflow):
		return badRequest(c, err.Error())
	case graph.IsStructuralFailure(err):
		return respond(c, fiber.StatusUnprocessableEntity, problemStructural, err.Error())
	case guard.IsGuardError(err):
		return respond(c, fiber.StatusConflict, problemGuardDenied, err.Error())
	default:
		return internalError(c, err)
	}
}
