package auth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/config"
	"github.com/skillswap/exchange-api/internal/middleware"
	"github.com/skillswap/exchange-api/internal/utils"
)

// initDataTTL bounds how old a Telegram launch payload may be.
const initDataTTL = 24 * time.Hour

// AuthService issues identity tokens.
type AuthService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	log        *slog.Logger
}

func NewAuthService(cfg *config.Config, jwtService *utils.JWTService, log *slog.Logger) *AuthService {
	return &AuthService{
		cfg:        cfg,
		jwtService: jwtService,
		log:        log.With("component", "auth"),
	}
}

type telegramRequest struct {
	InitData string `json:"init_data" validate:"required"`
}

type devTokenRequest struct {
	ActorID string `json:"actor_id" validate:"required,max=100"`
}

// TelegramAuthHandler validates Mini App init data and returns a token for
// the actor derived from the Telegram user.
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	var payload telegramRequest
	if err := c.Bind().Body(&payload); err != nil {
		return err
	}

	// Check the signature against the bot token and the payload age
	if err := initdata.Validate(payload.InitData, s.cfg.TelegramBotToken, initDataTTL); err != nil {
		s.log.Info("telegram init data rejected", "error", err)
		return fmt.Errorf("invalid telegram data: %w", apperrors.ErrAuthRequired)
	}
	data, err := initdata.Parse(payload.InitData)
	if err != nil {
		return fmt.Errorf("parse telegram data: %w", apperrors.ErrInvalidInput)
	}

	// Stable actor id for the Telegram account
	actorID := utils.TelegramActorID(data.User.ID)
	token, err := s.jwtService.GenerateToken(actorID)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	return c.JSON(fiber.Map{
		"token":    token,
		"actor_id": actorID,
		"user": fiber.Map{
			"telegram_id": data.User.ID,
			"first_name":  data.User.FirstName,
			"last_name":   data.User.LastName,
			"username":    data.User.Username,
			"photo_url":   data.User.PhotoURL,
		},
	})
}

// DevTokenHandler issues a token for any actor id. Only mounted outside
// production.
func (s *AuthService) DevTokenHandler(c fiber.Ctx) error {
	var payload devTokenRequest
	if err := c.Bind().Body(&payload); err != nil {
		return err
	}
	token, err := s.jwtService.GenerateToken(payload.ActorID)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	s.log.Warn("development token issued", "actor_id", payload.ActorID)
	return c.JSON(fiber.Map{"token": token, "actor_id": payload.ActorID})
}

// MeHandler echoes the authenticated actor.
func (s *AuthService) MeHandler(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"actor_id":  middleware.UserID(c),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
