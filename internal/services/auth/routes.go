package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/skillswap/exchange-api/internal/middleware"
)

// SetupRoutes registers the auth endpoints.
func (s *AuthService) SetupRoutes(app *fiber.App) {
	// Login with Telegram Mini App init data
	app.Post("/api/auth/telegram", s.TelegramAuthHandler)

	// Tokens for arbitrary actors, local development only
	if !s.cfg.IsProduction() {
		app.Post("/api/auth/dev-token", s.DevTokenHandler)
	}

	// Protected routes
	protected := app.Group("/api/auth/me")
	protected.Use(middleware.AuthMiddleware(s.jwtService))

	// Identity behind the bearer token
	protected.Get("/", s.MeHandler)
}
