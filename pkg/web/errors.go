package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/chronoflow/chronoflow/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleStoreError maps persistence errors onto problem responses.
func handleStoreError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsTimeplanNotFound(err):
		return notFound(c, "timeplan not found")
	case persistence.IsTimeplanAmbiguous(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("timeplan_ambiguous").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)
	case persistence.IsScheduleExecutionNotFound(err):
		return notFound(c, "schedule execution not found")
	default:
		return internalError(c, err)
	}
}
