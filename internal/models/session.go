package models

import (
	"time"

	"github.com/google/uuid"
)

// ExchangeSession is the two-party conversation created when a proposal is accepted.
type ExchangeSession struct {
	ID             uuid.UUID  `json:"id"`
	ProposalID     uuid.UUID  `json:"proposal_id"`
	ParticipantIDs [2]string  `json:"participant_ids"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	LastSeq        int64      `json:"last_seq"`

	// Filled for API responses
	Proposal *ExchangeProposal `json:"proposal,omitempty"`
}

// IsParticipant reports whether actorID is one of the two participants.
func (s *ExchangeSession) IsParticipant(actorID string) bool {
	return actorID != "" && (s.ParticipantIDs[0] == actorID || s.ParticipantIDs[1] == actorID)
}

// Ended reports whether the session has been terminated.
func (s *ExchangeSession) Ended() bool {
	return s.EndedAt != nil
}

// MessagePage is one page of a session's log, oldest first.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
}

// SessionEndedEvent is emitted once per session termination.
type SessionEndedEvent struct {
	SessionID    uuid.UUID          `json:"session_id"`
	ParticipantA ParticipantLearned `json:"participant_a"`
	ParticipantB ParticipantLearned `json:"participant_b"`
	EndedAt      time.Time          `json:"ended_at"`
	EndedBy      string             `json:"ended_by"`
}

// ParticipantLearned pairs a participant with the skill they were learning.
type ParticipantLearned struct {
	ID             string `json:"id"`
	LearnedSkillID string `json:"learned_skill_id"`
}

// SessionPage is a page of an actor's active sessions.
type SessionPage struct {
	Sessions   []ExchangeSession `json:"sessions"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}
