package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/cascade/pkg/services"
	"github.com/dukex/cascade/pkg/workflow"
)

// validationProblem is an RFC 7807 document extended with the full issue
// list, so authoring clients can surface every violation at once.
type validationProblem struct {
	*problems.Problem

	Errors []workflow.ValidationIssue `json:"errors,omitempty"`
}

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

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusConflict).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service-layer errors onto problem documents.
// Definition violations carry their issue list in the response body.
func handleServiceError(c fiber.Ctx, err error) error {
	var validationErr *workflow.ValidationError
	if errors.As(err, &validationErr) {
		problem := validationProblem{
			Problem: problems.NewStatusProblem(fiber.StatusBadRequest).
				WithInstance(c.Path()).
				WithType("validation_error").
				WithDetail(validationErr.Error()),
			Errors: validationErr.Issues,
		}

		return c.Status(fiber.StatusBadRequest).JSON(problem)
	}

	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())
	case services.IsConflictError(err):
		return conflict(c, err.Error())
	case services.IsNotFoundError(err):
		return notFound(c, err.Error())
	default:
		return internalError(c, err)
	}
}
