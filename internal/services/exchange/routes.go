package exchange

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes registers the exchange endpoints behind auth.
func (r *Registry) SetupRoutes(app *fiber.App, auth fiber.Handler) {
	api := app.Group("/api/exchanges", auth)

	// Propose an exchange
	api.Post("/", r.CreateHandler)
	// Proposals sent and received by the caller
	api.Get("/me", r.MineHandler)
	// Counterparty search for a requested skill
	api.Get("/search", r.SearchHandler)
	api.Get("/:id", r.GetHandler)
	// Lifecycle transitions
	api.Post("/:id/accept", r.AcceptHandler)
	api.Post("/:id/reject", r.RejectHandler)
	api.Post("/:id/forfeit", r.ForfeitHandler)
}
