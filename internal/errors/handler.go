package errors

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Handler returns a fiber.ErrorHandler that renders structured errors as
// JSON. Errors raised by fiber itself (404, 405, 426, body limits) keep
// their status code.
func Handler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message})
		}

		structuredErr := AsStructuredError(err)
		status := structuredErr.HTTPStatus()
		attrs := []any{
			"error_type", structuredErr.Type,
			"path", c.Path(),
			"method", c.Method(),
			"status", status,
		}
		if structuredErr.Type == TypeValidation {
			log.Debug("Request rejected", append(attrs, "message", structuredErr.Message)...)
		} else {
			log.Error("Request failed", append(attrs, "error", structuredErr)...)
		}
		return c.Status(status).JSON(structuredErr.ToResponse())
	}
}
