package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/models"
	"github.com/skillswap/exchange-api/internal/store"
)

const proposalColumns = `p.id, p.proposer_id, p.counterparty_id, p.offered_skill_id, p.requested_skill_id,
	p.status, p.created_at, p.expires_at, p.resolved_at, p.forfeited_by`

func scanProposal(row pgx.Row, extra ...any) (*models.ExchangeProposal, error) {
	var p *models.ExchangeProposal
	if err := row.Scan(append(proposalDest(&p), extra...)...); err != nil {
		return nil, err
	}
	return finishProposal(p), nil
}

func (s *Store) CreateProposal(ctx context.Context, p *models.ExchangeProposal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO exchange_proposals
			(id, proposer_id, counterparty_id, offered_skill_id, requested_skill_id, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.ProposerID, p.CounterpartyID, p.OfferedSkillID, p.RequestedSkillID,
		string(p.Status), p.CreatedAt, p.ExpiresAt,
	)
	if isUniqueViolation(err, pendingIndex) {
		return apperrors.ErrDuplicatePending
	}
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error) {
	var sessionID *uuid.UUID
	row := s.pool.QueryRow(ctx, `
		SELECT `+proposalColumns+`, s.id
		FROM exchange_proposals p
		LEFT JOIN exchange_sessions s ON s.proposal_id = p.id
		WHERE p.id = $1`, id)
	p, err := scanProposal(row, &sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("proposal %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.SessionID = sessionID
	return p, nil
}

func (s *Store) ListProposals(ctx context.Context, filter store.ProposalFilter) ([]models.ExchangeProposal, []models.ExchangeProposal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+proposalColumns+`, s.id
		FROM exchange_proposals p
		LEFT JOIN exchange_sessions s ON s.proposal_id = p.id
		WHERE (p.proposer_id = $1 OR p.counterparty_id = $1)
		  AND ($2 = '' OR p.status = $2)
		ORDER BY p.created_at DESC, p.id`,
		filter.ActorID, string(filter.Status),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var sent, received []models.ExchangeProposal
	for rows.Next() {
		var sessionID *uuid.UUID
		p, err := scanProposal(rows, &sessionID)
		if err != nil {
			return nil, nil, err
		}
		p.SessionID = sessionID
		if p.ProposerID == filter.ActorID {
			sent = append(sent, *p)
		} else {
			received = append(received, *p)
		}
	}
	return sent, received, rows.Err()
}

func (s *Store) TransitionProposal(ctx context.Context, id uuid.UUID, t models.Transition) (*models.TransitionResult, error) {
	from := make([]string, 0, len(t.From))
	for _, status := range t.From {
		if models.CanTransition(status, t.To) {
			from = append(from, string(status))
		}
	}
	var forfeitedBy *string
	if t.ForfeitedBy != "" {
		forfeitedBy = &t.ForfeitedBy
	}

	var result *models.TransitionResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var prev string
		row := tx.QueryRow(ctx, `
			WITH prev AS (
				SELECT id, status FROM exchange_proposals WHERE id = $1 FOR UPDATE
			)
			UPDATE exchange_proposals p
			SET status       = $2,
			    resolved_at  = CASE WHEN prev.status = 'pending' THEN $3 ELSE p.resolved_at END,
			    forfeited_by = COALESCE($4, p.forfeited_by)
			FROM prev
			WHERE p.id = prev.id
			  AND prev.status = ANY($5)
			  AND NOT ($6 AND prev.status = 'pending' AND p.expires_at < $3)
			RETURNING prev.status, `+proposalColumns,
			id, string(t.To), t.At, forfeitedBy, from, t.NotOverdue,
		)
		var p *models.ExchangeProposal
		err := row.Scan(append([]any{&prev}, proposalDest(&p)...)...)
		if errors.Is(err, pgx.ErrNoRows) {
			return s.classifyRejectedTransition(ctx, tx, id, t)
		}
		if err != nil {
			return err
		}
		p = finishProposal(p)

		result = &models.TransitionResult{Proposal: p}
		switch {
		case t.To == models.StatusAccepted && t.Session != nil:
			if err := insertSession(ctx, tx, t.Session); err != nil {
				return err
			}
			sessionID := t.Session.ID
			p.SessionID = &sessionID
		case t.To == models.StatusForfeited && models.ProposalStatus(prev) == models.StatusAccepted:
			ended, err := endSessionForProposal(ctx, tx, p.ID, t.At)
			if err != nil {
				return err
			}
			result.EndedSession = ended
			if ended != nil {
				p.SessionID = &ended.ID
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// classifyRejectedTransition explains why the conditional update matched no row.
func (s *Store) classifyRejectedTransition(ctx context.Context, tx pgx.Tx, id uuid.UUID, t models.Transition) error {
	var (
		status    string
		expiresAt time.Time
	)
	err := tx.QueryRow(ctx, `SELECT status, expires_at FROM exchange_proposals WHERE id = $1`, id).Scan(&status, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("proposal %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return err
	}
	current := models.ProposalStatus(status)
	if slices.Contains(t.From, current) && models.CanTransition(current, t.To) &&
		t.NotOverdue && current == models.StatusPending && expiresAt.Before(t.At) {
		return fmt.Errorf("proposal %s: %w", id, apperrors.ErrExpired)
	}
	return fmt.Errorf("proposal %s is %s: %w", id, current, apperrors.ErrNotPending)
}

func (s *Store) ListOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM exchange_proposals WHERE status = 'pending' AND expires_at < $1 ORDER BY expires_at, id`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list overdue proposals: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// proposalDest allocates a proposal and returns scan targets for proposalColumns.
func proposalDest(out **models.ExchangeProposal) []any {
	p := &models.ExchangeProposal{}
	*out = p
	return []any{
		&p.ID, &p.ProposerID, &p.CounterpartyID, &p.OfferedSkillID, &p.RequestedSkillID,
		&p.Status, &p.CreatedAt, &p.ExpiresAt, &p.ResolvedAt, &p.ForfeitedBy,
	}
}

func finishProposal(p *models.ExchangeProposal) *models.ExchangeProposal {
	p.CreatedAt = p.CreatedAt.UTC()
	p.ExpiresAt = p.ExpiresAt.UTC()
	if p.ResolvedAt != nil {
		at := p.ResolvedAt.UTC()
		p.ResolvedAt = &at
	}
	return p
}
