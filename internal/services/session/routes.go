package session

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes registers the session endpoints behind auth.
func (s *Service) SetupRoutes(app *fiber.App, auth fiber.Handler) {
	api := app.Group("/api/sessions", auth)

	// Open sessions of the caller
	api.Get("/", s.ListActiveHandler)
	// Session lookup by id or by accepted proposal
	api.Get("/by-proposal/:proposalId", s.ByProposalHandler)
	api.Get("/:id", s.GetHandler)
	// Message log
	api.Get("/:id/messages", s.MessagesHandler)
	api.Post("/:id/messages", s.SendMessageHandler)
	// End the session for both participants
	api.Post("/:id/end", s.EndHandler)
}
