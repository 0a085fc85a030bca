package upload

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes registers the attachment endpoints behind auth.
func (s *Service) SetupRoutes(app *fiber.App, auth fiber.Handler) {
	api := app.Group("/api/sessions/upload", auth)

	// Server-side upload of an attachment
	api.Post("/", s.UploadHandler)
	// Signed parameters for a direct upload from the client
	api.Get("/params", s.ParamsHandler)
}
