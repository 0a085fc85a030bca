package badgerdb

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/exchange-api/internal/models"
)

// Records hold times as UnixNano so CBOR round trips keep full precision.

type proposalRecord struct {
	ID               uuid.UUID `cbor:"1,keyasint"`
	ProposerID       string    `cbor:"2,keyasint"`
	CounterpartyID   string    `cbor:"3,keyasint"`
	OfferedSkillID   string    `cbor:"4,keyasint"`
	RequestedSkillID string    `cbor:"5,keyasint"`
	Status           string    `cbor:"6,keyasint"`
	CreatedAt        int64     `cbor:"7,keyasint"`
	ExpiresAt        int64     `cbor:"8,keyasint"`
	ResolvedAt       int64     `cbor:"9,keyasint,omitempty"`
	ForfeitedBy      string    `cbor:"10,keyasint,omitempty"`
}

type sessionRecord struct {
	ID           uuid.UUID `cbor:"1,keyasint"`
	ProposalID   uuid.UUID `cbor:"2,keyasint"`
	Participants [2]string `cbor:"3,keyasint"`
	CreatedAt    int64     `cbor:"4,keyasint"`
	UpdatedAt    int64     `cbor:"5,keyasint"`
	EndedAt      int64     `cbor:"6,keyasint,omitempty"`
	LastSeq      int64     `cbor:"7,keyasint"`
}

type messageRecord struct {
	ID         uuid.UUID `cbor:"1,keyasint"`
	SessionID  uuid.UUID `cbor:"2,keyasint"`
	Seq        int64     `cbor:"3,keyasint"`
	SenderID   string    `cbor:"4,keyasint"`
	Kind       string    `cbor:"5,keyasint"`
	Body       string    `cbor:"6,keyasint,omitempty"`
	ContentRef string    `cbor:"7,keyasint,omitempty"`
	SentAt     int64     `cbor:"8,keyasint"`
}

func fromNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func optionalNano(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}

func optionalTime(n int64) *time.Time {
	if n == 0 {
		return nil
	}
	t := fromNano(n)
	return &t
}

func fromProposal(p *models.ExchangeProposal) proposalRecord {
	rec := proposalRecord{
		ID:               p.ID,
		ProposerID:       p.ProposerID,
		CounterpartyID:   p.CounterpartyID,
		OfferedSkillID:   p.OfferedSkillID,
		RequestedSkillID: p.RequestedSkillID,
		Status:           string(p.Status),
		CreatedAt:        p.CreatedAt.UnixNano(),
		ExpiresAt:        p.ExpiresAt.UnixNano(),
		ResolvedAt:       optionalNano(p.ResolvedAt),
	}
	if p.ForfeitedBy != nil {
		rec.ForfeitedBy = *p.ForfeitedBy
	}
	return rec
}

func (r proposalRecord) model() *models.ExchangeProposal {
	p := &models.ExchangeProposal{
		ID:               r.ID,
		ProposerID:       r.ProposerID,
		CounterpartyID:   r.CounterpartyID,
		OfferedSkillID:   r.OfferedSkillID,
		RequestedSkillID: r.RequestedSkillID,
		Status:           models.ProposalStatus(r.Status),
		CreatedAt:        fromNano(r.CreatedAt),
		ExpiresAt:        fromNano(r.ExpiresAt),
		ResolvedAt:       optionalTime(r.ResolvedAt),
	}
	if r.ForfeitedBy != "" {
		forfeitedBy := r.ForfeitedBy
		p.ForfeitedBy = &forfeitedBy
	}
	return p
}

func fromSession(s *models.ExchangeSession) sessionRecord {
	return sessionRecord{
		ID:           s.ID,
		ProposalID:   s.ProposalID,
		Participants: s.ParticipantIDs,
		CreatedAt:    s.CreatedAt.UnixNano(),
		UpdatedAt:    s.UpdatedAt.UnixNano(),
		EndedAt:      optionalNano(s.EndedAt),
		LastSeq:      s.LastSeq,
	}
}

func (r sessionRecord) model() *models.ExchangeSession {
	return &models.ExchangeSession{
		ID:             r.ID,
		ProposalID:     r.ProposalID,
		ParticipantIDs: r.Participants,
		CreatedAt:      fromNano(r.CreatedAt),
		UpdatedAt:      fromNano(r.UpdatedAt),
		EndedAt:        optionalTime(r.EndedAt),
		LastSeq:        r.LastSeq,
	}
}

func fromMessage(m *models.Message) messageRecord {
	return messageRecord{
		ID:         m.ID,
		SessionID:  m.SessionID,
		Seq:        m.Seq,
		SenderID:   m.SenderID,
		Kind:       string(m.Payload.Kind()),
		Body:       m.Payload.Body(),
		ContentRef: m.Payload.ContentRef(),
		SentAt:     m.SentAt.UnixNano(),
	}
}

func (r messageRecord) model() (models.Message, error) {
	payload, err := models.NewPayload(models.MessageKind(r.Kind), r.Body, r.ContentRef)
	if err != nil {
		return models.Message{}, err
	}
	return models.Message{
		ID:        r.ID,
		SessionID: r.SessionID,
		Seq:       r.Seq,
		SenderID:  r.SenderID,
		Payload:   payload,
		SentAt:    fromNano(r.SentAt),
	}, nil
}
