package session

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/middleware"
	"github.com/skillswap/exchange-api/internal/models"
)

type sendMessageRequest struct {
	Kind       models.MessageKind `json:"kind" validate:"required"`
	Body       string             `json:"body"`
	ContentRef string             `json:"content_ref"`
}

type pageQuery struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" validate:"omitempty,min=1"`
	Limit    int `query:"limit" validate:"omitempty,min=1"`
}

// ListActiveHandler lists the actor's open sessions.
func (s *Service) ListActiveHandler(c fiber.Ctx) error {
	var q pageQuery
	if err := c.Bind().Query(&q); err != nil {
		return err
	}
	result, err := s.ListActive(c.Context(), middleware.UserID(c), q.Page, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// GetHandler returns the session with the requested page of its log.
func (s *Service) GetHandler(c fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var q pageQuery
	if err := c.Bind().Query(&q); err != nil {
		return err
	}

	// Session first, then the requested page of its log
	actorID := middleware.UserID(c)
	sess, err := s.Get(c.Context(), id, actorID)
	if err != nil {
		return err
	}
	page, err := s.FetchPage(c.Context(), id, actorID, q.Page, q.PageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"session": sess, "messages": page})
}

func (s *Service) ByProposalHandler(c fiber.Ctx) error {
	proposalID, err := pathID(c, "proposalId")
	if err != nil {
		return err
	}
	sess, err := s.GetByProposal(c.Context(), proposalID, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"session": sess})
}

// MessagesHandler returns one page of the session log.
func (s *Service) MessagesHandler(c fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var q pageQuery
	if err := c.Bind().Query(&q); err != nil {
		return err
	}
	page, err := s.FetchPage(c.Context(), id, middleware.UserID(c), q.Page, q.PageSize)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// SendMessageHandler stores a message and relays it to the session room.
func (s *Service) SendMessageHandler(c fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	// Kind and payload are checked together by the service
	var body sendMessageRequest
	if err := c.Bind().Body(&body); err != nil {
		return err
	}

	msg, err := s.AppendMessage(c.Context(), id, middleware.UserID(c), body.Kind, body.Body, body.ContentRef)
	if err != nil {
		return err
	}
	// Relay to connected participants only after the write committed
	s.Broadcast(*msg)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg})
}

func (s *Service) EndHandler(c fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sess, err := s.End(c.Context(), id, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"session": sess})
}

func pathID(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", name, c.Params(name), apperrors.ErrInvalidInput)
	}
	return id, nil
}
