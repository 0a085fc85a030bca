package sweeper

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes registers the operator trigger behind admin.
func (s *Sweeper) SetupRoutes(app *fiber.App, admin fiber.Handler) {
	api := app.Group("/api/admin", admin)

	// Manual expiry run
	api.Post("/expiry-sweep", s.RunHandler)
}

// RunHandler runs a sweep synchronously.
func (s *Sweeper) RunHandler(c fiber.Ctx) error {
	count, err := s.RunNow(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"expired_count": count})
}
