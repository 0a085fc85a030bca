package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/models"
	"github.com/skillswap/exchange-api/internal/notify"
	"github.com/skillswap/exchange-api/internal/store"
	"github.com/skillswap/exchange-api/internal/utils"
)

const (
	DefaultPageSize    = 50
	MaxPageSize        = 100
	DefaultActiveLimit = 20
)

// Storage is what the session store needs from the backend: its own
// repository plus proposal reads for learned-skill resolution.
type Storage interface {
	store.ISessionRepository
	GetProposal(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error)
}

// Broadcaster pushes committed messages to connected room members.
type Broadcaster interface {
	BroadcastMessage(msg models.Message)
}

// Service owns exchange sessions and their message logs.
type Service struct {
	storage     Storage
	notifier    notify.INotifier
	broadcaster Broadcaster
	log         *slog.Logger
	now         func() time.Time
}

func NewService(storage Storage, notifier notify.INotifier, log *slog.Logger) *Service {
	return &Service{
		storage:  storage,
		notifier: notifier,
		log:      log.With("component", "session_store"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetBroadcaster wires the realtime gateway once it exists.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// CreateFor builds the session for an accepted proposal. The registry
// inserts it inside the accept transaction; the storage rejects a second
// session for the same proposal with ErrAlreadyExists.
func (s *Service) CreateFor(proposal *models.ExchangeProposal, at time.Time) *models.ExchangeSession {
	return &models.ExchangeSession{
		ID:             uuid.New(),
		ProposalID:     proposal.ID,
		ParticipantIDs: [2]string{proposal.ProposerID, proposal.CounterpartyID},
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

// Get returns a session to one of its participants.
func (s *Service) Get(ctx context.Context, sessionID uuid.UUID, actorID string) (*models.ExchangeSession, error) {
	sess, err := s.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.forParticipant(ctx, sess, actorID)
}

// GetByProposal returns the session of an accepted proposal.
func (s *Service) GetByProposal(ctx context.Context, proposalID uuid.UUID, actorID string) (*models.ExchangeSession, error) {
	sess, err := s.storage.GetSessionByProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return s.forParticipant(ctx, sess, actorID)
}

func (s *Service) forParticipant(ctx context.Context, sess *models.ExchangeSession, actorID string) (*models.ExchangeSession, error) {
	if !sess.IsParticipant(actorID) {
		return nil, fmt.Errorf("not a participant of session %s: %w", sess.ID, apperrors.ErrForbidden)
	}
	if p, err := s.storage.GetProposal(ctx, sess.ProposalID); err == nil {
		sess.Proposal = p
	} else {
		s.log.Warn("session proposal lookup failed", "session_id", sess.ID, "error", err)
	}
	return sess, nil
}

// AppendMessage validates and stores a message from a participant. The
// sequence number is assigned by the storage inside the write.
func (s *Service) AppendMessage(ctx context.Context, sessionID uuid.UUID, senderID string, kind models.MessageKind, body, contentRef string) (*models.Message, error) {
	sess, err := s.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsParticipant(senderID) {
		return nil, fmt.Errorf("not a participant of session %s: %w", sessionID, apperrors.ErrForbidden)
	}
	if sess.Ended() {
		return nil, fmt.Errorf("session %s: %w", sessionID, apperrors.ErrSessionClosed)
	}
	payload, err := models.NewPayload(kind, body, contentRef)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		SenderID:  senderID,
		Payload:   payload,
		SentAt:    s.now(),
	}
	if err := s.storage.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.log.Debug("message stored", "session_id", sessionID, "seq", msg.Seq, "kind", kind)
	return msg, nil
}

// Broadcast hands a committed message to the gateway when one is wired.
func (s *Service) Broadcast(msg models.Message) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(msg)
	}
}

// FetchPage returns page n of the log counted from the newest chunk; the
// messages inside a page are oldest first.
func (s *Service) FetchPage(ctx context.Context, sessionID uuid.UUID, actorID string, page, pageSize int) (*models.MessagePage, error) {
	sess, err := s.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsParticipant(actorID) {
		return nil, fmt.Errorf("not a participant of session %s: %w", sessionID, apperrors.ErrForbidden)
	}
	page, pageSize = utils.NormalizePage(page, pageSize, DefaultPageSize, MaxPageSize)

	messages, total, err := s.storage.ListMessages(ctx, sessionID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	if messages == nil {
		messages = []models.Message{}
	}
	return &models.MessagePage{
		Messages:   messages,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: utils.TotalPages(total, pageSize),
	}, nil
}

// End terminates a session once and announces it.
func (s *Service) End(ctx context.Context, sessionID uuid.UUID, actorID string) (*models.ExchangeSession, error) {
	sess, err := s.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsParticipant(actorID) {
		return nil, fmt.Errorf("not a participant of session %s: %w", sessionID, apperrors.ErrForbidden)
	}

	ended, err := s.storage.EndSession(ctx, sessionID, s.now())
	if err != nil {
		return nil, err
	}
	proposal, err := s.storage.GetProposal(ctx, ended.ProposalID)
	if err != nil {
		s.log.Error("ended session has no readable proposal", "session_id", sessionID, "error", err)
		return ended, nil
	}
	ended.Proposal = proposal
	s.PublishEnded(ended, proposal, actorID)
	return ended, nil
}

// PublishEnded emits the session-end event with what each participant learned.
func (s *Service) PublishEnded(sess *models.ExchangeSession, proposal *models.ExchangeProposal, endedBy string) {
	endedAt := s.now()
	if sess.EndedAt != nil {
		endedAt = *sess.EndedAt
	}
	evt := models.SessionEndedEvent{
		SessionID: sess.ID,
		ParticipantA: models.ParticipantLearned{
			ID:             proposal.ProposerID,
			LearnedSkillID: proposal.LearnedSkill(proposal.ProposerID),
		},
		ParticipantB: models.ParticipantLearned{
			ID:             proposal.CounterpartyID,
			LearnedSkillID: proposal.LearnedSkill(proposal.CounterpartyID),
		},
		EndedAt: endedAt,
		EndedBy: endedBy,
	}
	s.log.Info("session ended", "session_id", sess.ID, "ended_by", endedBy)
	s.notifier.SessionEnded(evt)
}

// ListActive returns the actor's open sessions, most recently active first.
func (s *Service) ListActive(ctx context.Context, actorID string, page, limit int) (*models.SessionPage, error) {
	page, limit = utils.NormalizePage(page, limit, DefaultActiveLimit, MaxPageSize)
	sessions, total, err := s.storage.ListActiveSessions(ctx, actorID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if p, err := s.storage.GetProposal(ctx, sessions[i].ProposalID); err == nil {
			sessions[i].Proposal = p
		}
	}
	if sessions == nil {
		sessions = []models.ExchangeSession{}
	}
	return &models.SessionPage{
		Sessions:   sessions,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: utils.TotalPages(total, limit),
	}, nil
}
