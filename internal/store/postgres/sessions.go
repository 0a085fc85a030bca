package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/models"
)

const sessionColumns = `s.id, s.proposal_id, s.participant_a, s.participant_b,
	s.created_at, s.updated_at, s.ended_at, s.last_seq`

func scanSession(row pgx.Row) (*models.ExchangeSession, error) {
	var sess models.ExchangeSession
	err := row.Scan(
		&sess.ID, &sess.ProposalID, &sess.ParticipantIDs[0], &sess.ParticipantIDs[1],
		&sess.CreatedAt, &sess.UpdatedAt, &sess.EndedAt, &sess.LastSeq,
	)
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	if sess.EndedAt != nil {
		at := sess.EndedAt.UTC()
		sess.EndedAt = &at
	}
	return &sess, nil
}

func insertSession(ctx context.Context, tx pgx.Tx, sess *models.ExchangeSession) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO exchange_sessions (id, proposal_id, participant_a, participant_b, created_at, updated_at, last_seq)
		VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		sess.ID, sess.ProposalID, sess.ParticipantIDs[0], sess.ParticipantIDs[1], sess.CreatedAt, sess.UpdatedAt,
	)
	if isUniqueViolation(err, sessionProposalKey) {
		return fmt.Errorf("proposal %s: %w", sess.ProposalID, apperrors.ErrAlreadyExists)
	}
	return err
}

// endSessionForProposal closes the proposal's session if it is still open.
func endSessionForProposal(ctx context.Context, tx pgx.Tx, proposalID uuid.UUID, at time.Time) (*models.ExchangeSession, error) {
	sess, err := scanSession(tx.QueryRow(ctx, `
		UPDATE exchange_sessions s SET ended_at = $2, updated_at = $2
		WHERE s.proposal_id = $1 AND s.ended_at IS NULL
		RETURNING `+sessionColumns, proposalID, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*models.ExchangeSession, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM exchange_sessions s WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, apperrors.ErrNotFound)
	}
	return sess, err
}

func (s *Store) GetSessionByProposal(ctx context.Context, proposalID uuid.UUID) (*models.ExchangeSession, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM exchange_sessions s WHERE s.proposal_id = $1`, proposalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session for proposal %s: %w", proposalID, apperrors.ErrNotFound)
	}
	return sess, err
}

func (s *Store) ListActiveSessions(ctx context.Context, actorID string, offset, limit int) ([]models.ExchangeSession, int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM exchange_sessions
		WHERE (participant_a = $1 OR participant_b = $1) AND ended_at IS NULL`, actorID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count active sessions: %w", err)
	}
	if offset >= total {
		return nil, total, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM exchange_sessions s
		WHERE (s.participant_a = $1 OR s.participant_b = $1) AND s.ended_at IS NULL
		ORDER BY s.updated_at DESC, s.id
		OFFSET $2 LIMIT $3`, actorID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ExchangeSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, total, rows.Err()
}

// AppendMessage assigns the next sequence number and clamps SentAt so it
// never precedes the previous message of the session. The session row lock
// taken by the UPDATE serializes concurrent senders.
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var (
			seq    int64
			sentAt time.Time
		)
		err := tx.QueryRow(ctx, `
			UPDATE exchange_sessions SET last_seq = last_seq + 1, updated_at = GREATEST(updated_at, $2)
			WHERE id = $1 AND ended_at IS NULL
			RETURNING last_seq, updated_at`, msg.SessionID, msg.SentAt).Scan(&seq, &sentAt)
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := s.sessionState(ctx, tx, msg.SessionID); err != nil {
				return err
			}
			return fmt.Errorf("session %s: %w", msg.SessionID, apperrors.ErrSessionClosed)
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO session_messages (id, session_id, seq, sender_id, kind, body, content_ref, sent_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			msg.ID, msg.SessionID, seq, msg.SenderID, string(msg.Payload.Kind()),
			nullIfEmpty(msg.Payload.Body()), nullIfEmpty(msg.Payload.ContentRef()), sentAt,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		msg.Seq = seq
		msg.SentAt = sentAt.UTC()
		return nil
	})
}

func (s *Store) ListMessages(ctx context.Context, sessionID uuid.UUID, offset, limit int) ([]models.Message, int, error) {
	var lastSeq int64
	err := s.pool.QueryRow(ctx, `SELECT last_seq FROM exchange_sessions WHERE id = $1`, sessionID).Scan(&lastSeq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, fmt.Errorf("session %s: %w", sessionID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, seq, sender_id, kind, body, content_ref, sent_at
		FROM session_messages
		WHERE session_id = $1
		ORDER BY seq DESC
		OFFSET $2 LIMIT $3`, sessionID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			msg              models.Message
			kind             string
			body, contentRef *string
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Seq, &msg.SenderID, &kind, &body, &contentRef, &msg.SentAt); err != nil {
			return nil, 0, err
		}
		msg.Payload, err = models.NewPayload(models.MessageKind(kind), deref(body), deref(contentRef))
		if err != nil {
			return nil, 0, fmt.Errorf("message %s: %w", msg.ID, err)
		}
		msg.SentAt = msg.SentAt.UTC()
		messages = append(messages, msg)
	}
	return messages, int(lastSeq), rows.Err()
}

func (s *Store) EndSession(ctx context.Context, id uuid.UUID, at time.Time) (*models.ExchangeSession, error) {
	var sess *models.ExchangeSession
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		sess, err = scanSession(tx.QueryRow(ctx, `
			UPDATE exchange_sessions s SET ended_at = $2, updated_at = $2
			WHERE s.id = $1 AND s.ended_at IS NULL
			RETURNING `+sessionColumns, id, at))
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := s.sessionState(ctx, tx, id); err != nil {
				return err
			}
			return fmt.Errorf("session %s: %w", id, apperrors.ErrAlreadyEnded)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// sessionState reports whether the session has ended, or ErrNotFound.
func (s *Store) sessionState(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	var ended bool
	err := tx.QueryRow(ctx, `SELECT ended_at IS NOT NULL FROM exchange_sessions WHERE id = $1`, id).Scan(&ended)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("session %s: %w", id, apperrors.ErrNotFound)
	}
	return ended, err
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
