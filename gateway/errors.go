package gateway

import (
	"github.com/gofiber/fiber/v2"
	"github.com/siherrmann/docflow/helper"
)

// statusOf maps the failure taxonomy onto HTTP status codes. Transient port
// and storage failures are retryable for the caller, permanent port failures
// are not.
func statusOf(err error) int {
	switch helper.KindOf(err) {
	case helper.KindInvalidInput:
		return fiber.StatusBadRequest
	case helper.KindPortTimeout, helper.KindPortUnavailable, helper.KindStorage:
		return fiber.StatusServiceUnavailable
	case helper.KindPermanentPort:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	return c.Status(statusOf(err)).JSON(errorResponse{
		Kind:  helper.KindOf(err).String(),
		Error: err.Error(),
	})
}
