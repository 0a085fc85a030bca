package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/exchange-api/internal/models"
)

// ProposalFilter narrows ListProposals. Empty Status means any.
type ProposalFilter struct {
	ActorID string
	Status  models.ProposalStatus
}

// IProposalRepository owns exchange proposals. Every status change goes
// through TransitionProposal, which is a compare-and-set on one proposal.
type IProposalRepository interface {
	// CreateProposal fails with ErrDuplicatePending when a pending proposal
	// with the same proposer, counterparty and skill pair exists.
	CreateProposal(ctx context.Context, p *models.ExchangeProposal) error
	GetProposal(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error)
	// ListProposals returns proposals sent and received by filter.ActorID, newest first.
	ListProposals(ctx context.Context, filter ProposalFilter) (sent, received []models.ExchangeProposal, err error)
	// TransitionProposal applies t only if the current status is in t.From
	// (and, with t.NotOverdue, the horizon has not passed). A failed guard
	// returns ErrNotPending. Accepting inserts t.Session in the same unit;
	// forfeiting an accepted proposal ends its session.
	TransitionProposal(ctx context.Context, id uuid.UUID, t models.Transition) (*models.TransitionResult, error)
	// ListOverdue returns ids of pending proposals whose horizon is before now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// ISessionRepository owns exchange sessions and their message logs.
type ISessionRepository interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.ExchangeSession, error)
	GetSessionByProposal(ctx context.Context, proposalID uuid.UUID) (*models.ExchangeSession, error)
	// ListActiveSessions returns sessions without EndedAt for actorID,
	// most recently updated first, plus the total count.
	ListActiveSessions(ctx context.Context, actorID string, offset, limit int) ([]models.ExchangeSession, int, error)
	// AppendMessage assigns msg.Seq and stores msg atomically. msg.SentAt is
	// raised to the previous message's time when it is earlier, so sent_at
	// never decreases along the sequence. It fails with ErrSessionClosed
	// when the session has ended.
	AppendMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns up to limit messages ordered newest first,
	// skipping the offset most recent ones, plus the total count.
	ListMessages(ctx context.Context, sessionID uuid.UUID, offset, limit int) ([]models.Message, int, error)
	// EndSession sets EndedAt once. A second call returns ErrAlreadyEnded.
	EndSession(ctx context.Context, id uuid.UUID, at time.Time) (*models.ExchangeSession, error)
}

// Store is a storage backend. Proposal acceptance spans both repositories,
// so a backend implements them together.
type Store interface {
	IProposalRepository
	ISessionRepository
	Close() error
}
