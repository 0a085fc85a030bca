package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/utils"
)

const localUserID = "userID"

// BearerToken extracts the token from an "Authorization: Bearer ..." value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware validates the bearer token and stores the actor id in Locals.
func AuthMiddleware(jwtService *utils.JWTService) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "Missing authorization header")
		}

		tokenString, ok := BearerToken(authHeader)
		if !ok {
			return unauthorized(c, "Invalid authorization header format")
		}

		userID, err := jwtService.ExtractUserID(tokenString)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		c.Locals(localUserID, userID)
		return c.Next()
	}
}

// UserID returns the authenticated actor id set by AuthMiddleware.
func UserID(c fiber.Ctx) string {
	userID, _ := c.Locals(localUserID).(string)
	return userID
}

// AdminMiddleware guards operator endpoints with the X-Admin-Token header.
// An empty configured token disables the endpoints.
func AdminMiddleware(adminToken string) fiber.Handler {
	return func(c fiber.Ctx) error {
		given := c.Get("X-Admin-Token")
		if adminToken == "" || subtle.ConstantTimeCompare([]byte(given), []byte(adminToken)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin token required",
				"code":  apperrors.Code(apperrors.ErrForbidden),
			})
		}
		return c.Next()
	}
}

func unauthorized(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
		"code":  apperrors.Code(apperrors.ErrAuthRequired),
	})
}
