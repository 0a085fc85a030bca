package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/skillswap/exchange-api/internal/apperrors"
)

// ErrorHandler turns handler errors into {"error", "code"} responses.
// Domain errors keep their message; anything unknown becomes a generic 500
// and the cause is logged.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message, "code": codeForStatus(fe.Code)})
		}

		if apperrors.IsClientError(err) {
			return c.Status(apperrors.HTTPStatus(err)).JSON(fiber.Map{
				"error": err.Error(),
				"code":  apperrors.Code(err),
			})
		}

		log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
			"code":  apperrors.Code(err),
		})
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return apperrors.Code(apperrors.ErrInvalidInput)
	case fiber.StatusUnauthorized:
		return apperrors.Code(apperrors.ErrAuthRequired)
	case fiber.StatusForbidden:
		return apperrors.Code(apperrors.ErrForbidden)
	case fiber.StatusNotFound:
		return apperrors.Code(apperrors.ErrNotFound)
	}
	return "http_error"
}
