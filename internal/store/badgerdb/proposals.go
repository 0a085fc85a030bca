package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/models"
	"github.com/skillswap/exchange-api/internal/store"
)

const (
	roleSent     byte = 's'
	roleReceived byte = 'r'
)

func (s *Store) CreateProposal(_ context.Context, p *models.ExchangeProposal) error {
	return s.update(func(txn *badger.Txn) error {
		pk := pendingKey(p.ProposerID, p.CounterpartyID, p.OfferedSkillID, p.RequestedSkillID)
		_, err := txn.Get(pk)
		switch {
		case err == nil:
			return apperrors.ErrDuplicatePending
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := setValue(txn, proposalKey(p.ID), fromProposal(p)); err != nil {
			return err
		}
		if err := txn.Set(pk, []byte(p.ID.String())); err != nil {
			return err
		}
		if err := txn.Set(expiryKey(p.ExpiresAt, p.ID), nil); err != nil {
			return err
		}
		if err := txn.Set(actorProposalKey(p.ProposerID, p.CreatedAt, p.ID), []byte{roleSent}); err != nil {
			return err
		}
		return txn.Set(actorProposalKey(p.CounterpartyID, p.CreatedAt, p.ID), []byte{roleReceived})
	})
}

func (s *Store) GetProposal(_ context.Context, id uuid.UUID) (*models.ExchangeProposal, error) {
	var p *models.ExchangeProposal
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = loadProposal(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func loadProposal(txn *badger.Txn, id uuid.UUID) (*models.ExchangeProposal, error) {
	var rec proposalRecord
	if err := getValue(txn, proposalKey(id), &rec); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("proposal %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	p := rec.model()
	if sessionID, err := lookupSessionID(txn, id); err == nil {
		p.SessionID = &sessionID
	}
	return p, nil
}

func (s *Store) ListProposals(_ context.Context, filter store.ProposalFilter) ([]models.ExchangeProposal, []models.ExchangeProposal, error) {
	var sent, received []models.ExchangeProposal
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := actorPrefix(filter.ActorID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(slices.Clone(prefix), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			role, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			id, err := uuid.Parse(string(key[len(key)-36:]))
			if err != nil {
				return fmt.Errorf("corrupt actor index key %q: %w", key, err)
			}
			p, err := loadProposal(txn, id)
			if err != nil {
				return err
			}
			if filter.Status != "" && p.Status != filter.Status {
				continue
			}
			if len(role) == 1 && role[0] == roleSent {
				sent = append(sent, *p)
			} else {
				received = append(received, *p)
			}
		}
		return nil
	})
	return sent, received, err
}

func (s *Store) TransitionProposal(_ context.Context, id uuid.UUID, t models.Transition) (*models.TransitionResult, error) {
	var result *models.TransitionResult
	err := s.update(func(txn *badger.Txn) error {
		result = nil
		p, err := loadProposal(txn, id)
		if err != nil {
			return err
		}
		prev := p.Status
		if !slices.Contains(t.From, prev) || !models.CanTransition(prev, t.To) {
			return fmt.Errorf("proposal %s is %s: %w", id, prev, apperrors.ErrNotPending)
		}
		if t.NotOverdue && p.IsOverdue(t.At) {
			return fmt.Errorf("proposal %s: %w", id, apperrors.ErrExpired)
		}

		at := t.At
		p.Status = t.To
		if prev == models.StatusPending {
			p.ResolvedAt = &at
			if err := txn.Delete(pendingKey(p.ProposerID, p.CounterpartyID, p.OfferedSkillID, p.RequestedSkillID)); err != nil {
				return err
			}
			if err := txn.Delete(expiryKey(p.ExpiresAt, p.ID)); err != nil {
				return err
			}
		}
		if t.ForfeitedBy != "" {
			forfeitedBy := t.ForfeitedBy
			p.ForfeitedBy = &forfeitedBy
		}

		result = &models.TransitionResult{Proposal: p}
		switch {
		case t.To == models.StatusAccepted && t.Session != nil:
			if err := insertSession(txn, t.Session); err != nil {
				return err
			}
			sessionID := t.Session.ID
			p.SessionID = &sessionID
		case t.To == models.StatusForfeited && prev == models.StatusAccepted:
			ended, err := endSessionForProposal(txn, p.ID, at)
			if err != nil {
				return err
			}
			result.EndedSession = ended
		}
		return setValue(txn, proposalKey(p.ID), fromProposal(p))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListOverdue(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(expiryPrefix)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		cutoff := now.UnixNano()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(ids) == limit {
				break
			}
			key := string(it.Item().Key())
			rest := key[len(expiryPrefix):]
			expiresAt, err := strconv.ParseInt(rest[:19], 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt expiry key %q: %w", key, err)
			}
			if expiresAt >= cutoff {
				break
			}
			id, err := uuid.Parse(rest[20:])
			if err != nil {
				return fmt.Errorf("corrupt expiry key %q: %w", key, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}
