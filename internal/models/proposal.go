package models

import (
	"time"

	"github.com/google/uuid"
)

// ProposalStatus is the lifecycle state of an exchange proposal.
type ProposalStatus string

const (
	StatusPending   ProposalStatus = "pending"
	StatusAccepted  ProposalStatus = "accepted"
	StatusRejected  ProposalStatus = "rejected"
	StatusExpired   ProposalStatus = "expired"
	StatusForfeited ProposalStatus = "forfeited"
)

// legalEdges lists every allowed status change.
var legalEdges = map[ProposalStatus][]ProposalStatus{
	StatusPending:  {StatusAccepted, StatusRejected, StatusExpired, StatusForfeited},
	StatusAccepted: {StatusForfeited},
}

// Valid reports whether s is one of the five known states.
func (s ProposalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusExpired, StatusForfeited:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to ProposalStatus) bool {
	for _, s := range legalEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SourcesOf returns the states from which to is reachable.
func SourcesOf(to ProposalStatus) []ProposalStatus {
	var from []ProposalStatus
	for _, s := range []ProposalStatus{StatusPending, StatusAccepted} {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

// ExchangeProposal is an offered reciprocal exchange: the proposer teaches OfferedSkillID and wants to learn RequestedSkillID.
type ExchangeProposal struct {
	ID               uuid.UUID      `json:"id"`
	ProposerID       string         `json:"proposer_id"`
	CounterpartyID   string         `json:"counterparty_id"`
	OfferedSkillID   string         `json:"offered_skill_id"`
	RequestedSkillID string         `json:"requested_skill_id"`
	Status           ProposalStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	ExpiresAt        time.Time      `json:"expires_at"`
	ResolvedAt       *time.Time     `json:"resolved_at,omitempty"`
	ForfeitedBy      *string        `json:"forfeited_by,omitempty"`

	// Read-through fields filled for API responses.
	OfferedSkill   *Skill     `json:"offered_skill,omitempty"`
	RequestedSkill *Skill     `json:"requested_skill,omitempty"`
	SessionID      *uuid.UUID `json:"session_id,omitempty"`
}

// IsOverdue is the lazy expiry predicate: pending and past the horizon.
func (p *ExchangeProposal) IsOverdue(now time.Time) bool {
	return p.Status == StatusPending && p.ExpiresAt.Before(now)
}

// IsParticipant reports whether actorID is one of the two parties.
func (p *ExchangeProposal) IsParticipant(actorID string) bool {
	return actorID == p.ProposerID || actorID == p.CounterpartyID
}

// LearnedSkill returns the skill actorID learns in this exchange.
func (p *ExchangeProposal) LearnedSkill(actorID string) string {
	if actorID == p.ProposerID {
		return p.RequestedSkillID
	}
	return p.OfferedSkillID
}

// Transition describes one compare-and-set on a proposal's status.
type Transition struct {
	From []ProposalStatus
	To   ProposalStatus
	At   time.Time

	// NotOverdue rejects the change when a pending proposal's horizon
	// has passed at At.
	NotOverdue  bool
	ForfeitedBy string

	// Session is inserted in the same atomic unit when To is accepted.
	Session *ExchangeSession
}

// TransitionResult is what a committed transition produced.
type TransitionResult struct {
	Proposal *ExchangeProposal
	// EndedSession is set when forfeiting an accepted proposal closed its session.
	EndedSession *ExchangeSession
}

// ProposalLists holds an actor's proposals split by role, newest first.
type ProposalLists struct {
	Sent     []ExchangeProposal `json:"sent"`
	Received []ExchangeProposal `json:"received"`
}
