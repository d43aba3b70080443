package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"sierraspos/internal/domain"
	applog "sierraspos/internal/log"
	"sierraspos/internal/services"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateClaim),
		errors.Is(err, domain.ErrNumberClaimed),
		errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrPrecondition):
		return fiber.StatusPreconditionFailed
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrBadCreds):
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

// fail writes a JSON error. Client errors carry their message and details;
// anything else is logged and hidden behind a generic text.
func fail(c *fiber.Ctx, action string, err error) error {
	code := statusFor(err)
	if code == fiber.StatusInternalServerError {
		applog.Error(c, action, err, nil)
		return c.Status(code).JSON(fiber.Map{"error": "Something went wrong. Please try again."})
	}

	body := fiber.Map{"error": err.Error()}
	var (
		claimed *domain.NumberClaimedError
		dup     *domain.DuplicateClaimError
		cart    *domain.InvalidCartError
	)
	switch {
	case errors.As(err, &claimed):
		body["number"] = claimed.Number
		body["saleId"] = claimed.SaleID
	case errors.As(err, &dup):
		body["number"] = dup.Number
	case errors.As(err, &cart):
		body["problems"] = cart.Problems
	}
	if code == fiber.StatusForbidden || code == fiber.StatusUnauthorized {
		applog.Security(c, action, map[string]any{"reason": err.Error()})
	}
	return c.Status(code).JSON(body)
}

func badRequest(c *fiber.Ctx, field string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid " + field})
}

func ok(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true})
}
