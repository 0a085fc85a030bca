package exchange

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/middleware"
	"github.com/skillswap/exchange-api/internal/models"
)

type createRequest struct {
	CounterpartyID   string `json:"counterparty_id" validate:"required"`
	OfferedSkillID   string `json:"offered_skill_id" validate:"required"`
	RequestedSkillID string `json:"requested_skill_id" validate:"required"`
}

type searchQuery struct {
	RequestedSkillID string `query:"requested_skill_id" validate:"required"`
	OfferedSkillIDs  string `query:"offered_skill_ids"`
	Page             int    `query:"page" validate:"omitempty,min=1"`
	Limit            int    `query:"limit" validate:"omitempty,min=1"`
}

// CreateHandler creates a pending proposal from the authenticated actor.
func (r *Registry) CreateHandler(c fiber.Ctx) error {
	// Parse and validate the request body
	var body createRequest
	if err := c.Bind().Body(&body); err != nil {
		return err
	}

	// The caller is always the proposer
	p, err := r.Propose(c.Context(), middleware.UserID(c), body.OfferedSkillID, body.RequestedSkillID, body.CounterpartyID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"proposal": p})
}

// MineHandler lists the actor's sent and received proposals.
func (r *Registry) MineHandler(c fiber.Ctx) error {
	lists, err := r.ListMine(c.Context(), middleware.UserID(c), models.ProposalStatus(c.Query("status")))
	if err != nil {
		return err
	}
	return c.JSON(lists)
}

// SearchHandler finds counterparties for a requested skill.
func (r *Registry) SearchHandler(c fiber.Ctx) error {
	var q searchQuery
	if err := c.Bind().Query(&q); err != nil {
		return err
	}

	// Comma separated list; empty falls back to what the caller teaches
	var offered []string
	if q.OfferedSkillIDs != "" {
		offered = strings.Split(q.OfferedSkillIDs, ",")
	}
	result, err := r.FindCounterparties(c.Context(), q.RequestedSkillID, offered, middleware.UserID(c), q.Page, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (r *Registry) GetHandler(c fiber.Ctx) error {
	id, err := proposalID(c)
	if err != nil {
		return err
	}
	p, err := r.Get(c.Context(), id, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"proposal": p})
}

// AcceptHandler accepts a proposal and returns it with the new session.
func (r *Registry) AcceptHandler(c fiber.Ctx) error {
	id, err := proposalID(c)
	if err != nil {
		return err
	}
	// Only the counterparty may accept; the session is created in the same write
	p, sess, err := r.Accept(c.Context(), id, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"proposal": p, "session": sess})
}

func (r *Registry) RejectHandler(c fiber.Ctx) error {
	id, err := proposalID(c)
	if err != nil {
		return err
	}
	p, err := r.Reject(c.Context(), id, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"proposal": p})
}

func (r *Registry) ForfeitHandler(c fiber.Ctx) error {
	id, err := proposalID(c)
	if err != nil {
		return err
	}
	// Either party may forfeit; an accepted proposal also ends its session
	p, err := r.Forfeit(c.Context(), id, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"proposal": p})
}

func proposalID(c fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid proposal id %q: %w", c.Params("id"), apperrors.ErrInvalidInput)
	}
	return id, nil
}
