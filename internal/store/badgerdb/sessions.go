package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/models"
)

func insertSession(txn *badger.Txn, sess *models.ExchangeSession) error {
	_, err := txn.Get(byProposalKey(sess.ProposalID))
	switch {
	case err == nil:
		return fmt.Errorf("proposal %s: %w", sess.ProposalID, apperrors.ErrAlreadyExists)
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}
	if err := setValue(txn, sessionKey(sess.ID), fromSession(sess)); err != nil {
		return err
	}
	if err := txn.Set(byProposalKey(sess.ProposalID), []byte(sess.ID.String())); err != nil {
		return err
	}
	for _, actorID := range sess.ParticipantIDs {
		if err := txn.Set(actorSessionKey(actorID, sess.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

func lookupSessionID(txn *badger.Txn, proposalID uuid.UUID) (uuid.UUID, error) {
	item, err := txn.Get(byProposalKey(proposalID))
	if err != nil {
		return uuid.Nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(string(raw))
}

func loadSession(txn *badger.Txn, id uuid.UUID) (*models.ExchangeSession, error) {
	var rec sessionRecord
	if err := getValue(txn, sessionKey(id), &rec); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return rec.model(), nil
}

// endSessionForProposal closes the proposal's session if it is still open.
func endSessionForProposal(txn *badger.Txn, proposalID uuid.UUID, at time.Time) (*models.ExchangeSession, error) {
	sessionID, err := lookupSessionID(txn, proposalID)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess, err := loadSession(txn, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return nil, nil
	}
	sess.EndedAt = &at
	sess.UpdatedAt = at
	if err := setValue(txn, sessionKey(sess.ID), fromSession(sess)); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) GetSession(_ context.Context, id uuid.UUID) (*models.ExchangeSession, error) {
	var sess *models.ExchangeSession
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		sess, err = loadSession(txn, id)
		return err
	})
	return sess, err
}

func (s *Store) GetSessionByProposal(_ context.Context, proposalID uuid.UUID) (*models.ExchangeSession, error) {
	var sess *models.ExchangeSession
	err := s.db.View(func(txn *badger.Txn) error {
		sessionID, err := lookupSessionID(txn, proposalID)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("session for proposal %s: %w", proposalID, apperrors.ErrNotFound)
		}
		if err != nil {
			return err
		}
		sess, err = loadSession(txn, sessionID)
		return err
	})
	return sess, err
}

func (s *Store) ListActiveSessions(_ context.Context, actorID string, offset, limit int) ([]models.ExchangeSession, int, error) {
	var active []models.ExchangeSession
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := actorSessionPrefix(actorID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			id, err := uuid.Parse(string(key[len(prefix):]))
			if err != nil {
				return fmt.Errorf("corrupt session index key %q: %w", key, err)
			}
			sess, err := loadSession(txn, id)
			if err != nil {
				return err
			}
			if !sess.Ended() {
				active = append(active, *sess)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(active, func(i, j int) bool {
		if !active[i].UpdatedAt.Equal(active[j].UpdatedAt) {
			return active[i].UpdatedAt.After(active[j].UpdatedAt)
		}
		return active[i].ID.String() < active[j].ID.String()
	})
	total := len(active)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return active[offset:end], total, nil
}

// AppendMessage assigns the next sequence number and clamps SentAt so it
// never precedes the previous message of the session.
func (s *Store) AppendMessage(_ context.Context, msg *models.Message) error {
	requested := msg.SentAt
	return s.update(func(txn *badger.Txn) error {
		sess, err := loadSession(txn, msg.SessionID)
		if err != nil {
			return err
		}
		if sess.Ended() {
			return fmt.Errorf("session %s: %w", sess.ID, apperrors.ErrSessionClosed)
		}
		msg.SentAt = requested
		if msg.SentAt.Before(sess.UpdatedAt) {
			msg.SentAt = sess.UpdatedAt
		}
		msg.Seq = sess.LastSeq + 1
		sess.LastSeq = msg.Seq
		sess.UpdatedAt = msg.SentAt
		if err := setValue(txn, sessionKey(sess.ID), fromSession(sess)); err != nil {
			return err
		}
		return setValue(txn, messageKey(msg.SessionID, msg.Seq), fromMessage(msg))
	})
}

func (s *Store) ListMessages(_ context.Context, sessionID uuid.UUID, offset, limit int) ([]models.Message, int, error) {
	var (
		messages []models.Message
		total    int
	)
	err := s.db.View(func(txn *badger.Txn) error {
		sess, err := loadSession(txn, sessionID)
		if err != nil {
			return err
		}
		total = int(sess.LastSeq)

		prefix := messagePrefix(sessionID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Seek(append(slices.Clone(prefix), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(messages) == limit {
				break
			}
			var rec messageRecord
			if err := getValueFromItem(it.Item(), &rec); err != nil {
				return err
			}
			msg, err := rec.model()
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (s *Store) EndSession(_ context.Context, id uuid.UUID, at time.Time) (*models.ExchangeSession, error) {
	var sess *models.ExchangeSession
	err := s.update(func(txn *badger.Txn) error {
		var err error
		sess, err = loadSession(txn, id)
		if err != nil {
			return err
		}
		if sess.Ended() {
			return fmt.Errorf("session %s: %w", id, apperrors.ErrAlreadyEnded)
		}
		sess.EndedAt = &at
		sess.UpdatedAt = at
		return setValue(txn, sessionKey(id), fromSession(sess))
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}
