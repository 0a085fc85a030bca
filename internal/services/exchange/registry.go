package exchange

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/catalog"
	"github.com/skillswap/exchange-api/internal/models"
	"github.com/skillswap/exchange-api/internal/store"
	"github.com/skillswap/exchange-api/internal/utils"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// SessionLifecycle is the part of the session store the registry drives:
// building the session that an accept inserts, and announcing sessions
// that a forfeit ended.
type SessionLifecycle interface {
	CreateFor(proposal *models.ExchangeProposal, at time.Time) *models.ExchangeSession
	PublishEnded(sess *models.ExchangeSession, proposal *models.ExchangeProposal, endedBy string)
}

// Registry owns the exchange proposal lifecycle.
type Registry struct {
	proposals store.IProposalRepository
	catalog   catalog.ICatalog
	sessions  SessionLifecycle
	log       *slog.Logger
	ttl       time.Duration
	now       func() time.Time
}

func NewRegistry(proposals store.IProposalRepository, cat catalog.ICatalog, sessions SessionLifecycle, log *slog.Logger, ttl time.Duration) *Registry {
	return &Registry{
		proposals: proposals,
		catalog:   cat,
		sessions:  sessions,
		log:       log.With("component", "exchange_registry"),
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Propose creates a pending proposal after checking the reciprocity terms:
// the proposer teaches the offered skill, the counterparty teaches the
// requested skill and wants the offered one.
func (r *Registry) Propose(ctx context.Context, proposerID, offeredSkillID, requestedSkillID, counterpartyID string) (*models.ExchangeProposal, error) {
	offeredSkillID = strings.TrimSpace(offeredSkillID)
	requestedSkillID = strings.TrimSpace(requestedSkillID)
	counterpartyID = strings.TrimSpace(counterpartyID)
	if offeredSkillID == "" || requestedSkillID == "" || counterpartyID == "" {
		return nil, fmt.Errorf("counterparty and both skills are required: %w", apperrors.ErrInvalidTerms)
	}
	if proposerID == counterpartyID {
		return nil, apperrors.ErrSelfReference
	}

	for _, id := range []string{offeredSkillID, requestedSkillID} {
		if _, err := r.catalog.Skill(ctx, id); err != nil {
			return nil, termsError(err, "skill %q is unknown", id)
		}
	}
	proposer, err := r.catalog.Profile(ctx, proposerID)
	if err != nil {
		return nil, termsError(err, "proposer profile is unknown")
	}
	counterparty, err := r.catalog.Profile(ctx, counterpartyID)
	if err != nil {
		return nil, termsError(err, "counterparty profile is unknown")
	}

	switch {
	case !slices.Contains(proposer.Teaches, offeredSkillID):
		return nil, fmt.Errorf("you do not teach %q: %w", offeredSkillID, apperrors.ErrInvalidTerms)
	case !slices.Contains(counterparty.Teaches, requestedSkillID):
		return nil, fmt.Errorf("counterparty does not teach %q: %w", requestedSkillID, apperrors.ErrInvalidTerms)
	case !slices.Contains(counterparty.Wants, offeredSkillID):
		return nil, fmt.Errorf("counterparty does not want to learn %q: %w", offeredSkillID, apperrors.ErrInvalidTerms)
	}

	now := r.now()
	p := &models.ExchangeProposal{
		ID:               uuid.New(),
		ProposerID:       proposerID,
		CounterpartyID:   counterpartyID,
		OfferedSkillID:   offeredSkillID,
		RequestedSkillID: requestedSkillID,
		Status:           models.StatusPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(r.ttl),
	}
	if err := r.proposals.CreateProposal(ctx, p); err != nil {
		return nil, err
	}
	r.log.Info("proposal created", "proposal_id", p.ID, "proposer_id", proposerID, "counterparty_id", counterpartyID)
	r.resolveSkills(ctx, p, nil)
	return p, nil
}

// Accept moves a pending proposal to accepted and creates its session in
// the same atomic unit. Only the counterparty may accept.
func (r *Registry) Accept(ctx context.Context, proposalID uuid.UUID, actorID string) (*models.ExchangeProposal, *models.ExchangeSession, error) {
	p, err := r.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, nil, err
	}
	if actorID != p.CounterpartyID {
		return nil, nil, fmt.Errorf("only the counterparty can accept: %w", apperrors.ErrForbidden)
	}

	now := r.now()
	sess := r.sessions.CreateFor(p, now)
	res, err := r.transition(ctx, proposalID, models.Transition{
		From:       []models.ProposalStatus{models.StatusPending},
		To:         models.StatusAccepted,
		At:         now,
		NotOverdue: true,
		Session:    sess,
	})
	if err != nil {
		return nil, nil, err
	}
	r.log.Info("proposal accepted", "proposal_id", proposalID, "session_id", sess.ID)
	r.resolveSkills(ctx, res.Proposal, nil)
	return res.Proposal, sess, nil
}

// Reject moves a pending proposal to rejected. Only the counterparty may reject.
func (r *Registry) Reject(ctx context.Context, proposalID uuid.UUID, actorID string) (*models.ExchangeProposal, error) {
	p, err := r.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if actorID != p.CounterpartyID {
		return nil, fmt.Errorf("only the counterparty can reject: %w", apperrors.ErrForbidden)
	}

	res, err := r.transition(ctx, proposalID, models.Transition{
		From:       []models.ProposalStatus{models.StatusPending},
		To:         models.StatusRejected,
		At:         r.now(),
		NotOverdue: true,
	})
	if err != nil {
		return nil, err
	}
	r.log.Info("proposal rejected", "proposal_id", proposalID)
	r.resolveSkills(ctx, res.Proposal, nil)
	return res.Proposal, nil
}

// Forfeit lets either participant walk away from a pending or accepted
// exchange. Forfeiting an accepted exchange ends its session.
func (r *Registry) Forfeit(ctx context.Context, proposalID uuid.UUID, actorID string) (*models.ExchangeProposal, error) {
	p, err := r.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.IsParticipant(actorID) {
		return nil, fmt.Errorf("only participants can forfeit: %w", apperrors.ErrForbidden)
	}

	res, err := r.transition(ctx, proposalID, models.Transition{
		From:        models.SourcesOf(models.StatusForfeited),
		To:          models.StatusForfeited,
		At:          r.now(),
		NotOverdue:  true,
		ForfeitedBy: actorID,
	})
	if err != nil {
		return nil, err
	}
	r.log.Info("proposal forfeited", "proposal_id", proposalID, "forfeited_by", actorID)
	if res.EndedSession != nil {
		r.sessions.PublishEnded(res.EndedSession, res.Proposal, actorID)
	}
	r.resolveSkills(ctx, res.Proposal, nil)
	return res.Proposal, nil
}

// Expire moves an overdue pending proposal to expired. It reports false when
// the proposal was resolved concurrently.
func (r *Registry) Expire(ctx context.Context, proposalID uuid.UUID) (bool, error) {
	_, err := r.proposals.TransitionProposal(ctx, proposalID, models.Transition{
		From: []models.ProposalStatus{models.StatusPending},
		To:   models.StatusExpired,
		At:   r.now(),
	})
	if errors.Is(err, apperrors.ErrNotPending) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// transition applies t and performs the lazy expiry when the store reports
// the horizon has passed.
func (r *Registry) transition(ctx context.Context, proposalID uuid.UUID, t models.Transition) (*models.TransitionResult, error) {
	res, err := r.proposals.TransitionProposal(ctx, proposalID, t)
	if !errors.Is(err, apperrors.ErrExpired) {
		return res, err
	}
	if _, expireErr := r.Expire(ctx, proposalID); expireErr != nil {
		r.log.Error("lazy expiry failed", "proposal_id", proposalID, "error", expireErr)
	} else {
		r.log.Info("proposal expired on access", "proposal_id", proposalID)
	}
	return nil, err
}

// FindCounterparties lists active actors who teach requestedSkillID and want
// at least one of offeredSkillIDs, best reputation first. When
// offeredSkillIDs is empty the searcher's taught skills are used.
func (r *Registry) FindCounterparties(ctx context.Context, requestedSkillID string, offeredSkillIDs []string, excludeActorID string, page, limit int) (*models.CounterpartyPage, error) {
	requestedSkillID = strings.TrimSpace(requestedSkillID)
	if requestedSkillID == "" {
		return nil, fmt.Errorf("requested skill is required: %w", apperrors.ErrInvalidInput)
	}
	offeredSkillIDs = lo.Compact(lo.Map(offeredSkillIDs, func(id string, _ int) string { return strings.TrimSpace(id) }))
	if len(offeredSkillIDs) == 0 {
		self, err := r.catalog.Profile(ctx, excludeActorID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		if self != nil {
			offeredSkillIDs = self.Teaches
		}
	}
	if len(offeredSkillIDs) == 0 {
		return nil, fmt.Errorf("at least one offered skill is required: %w", apperrors.ErrInvalidInput)
	}
	page, limit = utils.NormalizePage(page, limit, DefaultSearchLimit, MaxSearchLimit)

	teaching, err := r.catalog.ProfilesTeaching(ctx, requestedSkillID)
	if err != nil {
		return nil, err
	}
	candidates := lo.Filter(teaching, func(p models.Profile, _ int) bool {
		return p.Active && p.ID != excludeActorID && len(lo.Intersect(offeredSkillIDs, p.Wants)) > 0
	})
	slices.SortFunc(candidates, func(a, b models.Profile) int {
		if c := cmp.Compare(b.Reputation, a.Reputation); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	total := len(candidates)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	return &models.CounterpartyPage{
		Users:      candidates[start:end],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: utils.TotalPages(total, limit),
	}, nil
}

// ListMine returns the actor's sent and received proposals, optionally
// filtered by status.
func (r *Registry) ListMine(ctx context.Context, actorID string, status models.ProposalStatus) (*models.ProposalLists, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, apperrors.ErrInvalidInput)
	}
	sent, received, err := r.proposals.ListProposals(ctx, store.ProposalFilter{ActorID: actorID, Status: status})
	if err != nil {
		return nil, err
	}

	skills := map[string]*models.Skill{}
	for i := range sent {
		r.resolveSkills(ctx, &sent[i], skills)
	}
	for i := range received {
		r.resolveSkills(ctx, &received[i], skills)
	}
	return &models.ProposalLists{
		Sent:     lo.Ternary(sent == nil, []models.ExchangeProposal{}, sent),
		Received: lo.Ternary(received == nil, []models.ExchangeProposal{}, received),
	}, nil
}

// Get returns a proposal to one of its participants.
func (r *Registry) Get(ctx context.Context, proposalID uuid.UUID, actorID string) (*models.ExchangeProposal, error) {
	p, err := r.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.IsParticipant(actorID) {
		return nil, apperrors.ErrForbidden
	}
	r.resolveSkills(ctx, p, nil)
	return p, nil
}

// resolveSkills fills the skill names read-through from the catalog. A
// skill that no longer exists is rendered with its id only.
func (r *Registry) resolveSkills(ctx context.Context, p *models.ExchangeProposal, cache map[string]*models.Skill) {
	lookup := func(id string) *models.Skill {
		if s, ok := cache[id]; ok {
			return s
		}
		s, err := r.catalog.Skill(ctx, id)
		if err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				r.log.Warn("skill lookup failed", "skill_id", id, "error", err)
			}
			s = &models.Skill{ID: id}
		}
		if cache != nil {
			cache[id] = s
		}
		return s
	}
	p.OfferedSkill = lookup(p.OfferedSkillID)
	p.RequestedSkill = lookup(p.RequestedSkillID)
}

// termsError turns a catalog miss into ErrInvalidTerms and keeps other
// failures as they are.
func termsError(err error, format string, args ...any) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf(format+": %w", append(args, apperrors.ErrInvalidTerms)...)
	}
	return err
}
