package badgerdb

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/models"
	"github.com/skillswap/exchange-api/internal/store"
)

var _ store.Store = (*Store)(nil)

func setupStore(t *testing.T) *Store {
	s, err := Open("", slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newProposal(now time.Time) *models.ExchangeProposal {
	return &models.ExchangeProposal{
		ID:               uuid.New(),
		ProposerID:       "alice",
		CounterpartyID:   "bob",
		OfferedSkillID:   "go",
		RequestedSkillID: "guitar",
		Status:           models.StatusPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(30 * 24 * time.Hour),
	}
}

func newSession(p *models.ExchangeProposal, now time.Time) *models.ExchangeSession {
	return &models.ExchangeSession{
		ID:             uuid.New(),
		ProposalID:     p.ID,
		ParticipantIDs: [2]string{p.ProposerID, p.CounterpartyID},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func acceptTransition(sess *models.ExchangeSession, at time.Time) models.Transition {
	return models.Transition{
		From:       []models.ProposalStatus{models.StatusPending},
		To:         models.StatusAccepted,
		At:         at,
		NotOverdue: true,
		Session:    sess,
	}
}

func TestStore_CreateProposal(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("should persist and reload a proposal", func(t *testing.T) {
		req := require.New(t)
		s := setupStore(t)
		p := newProposal(now)

		req.NoError(s.CreateProposal(ctx, p))
		got, err := s.GetProposal(ctx, p.ID)
		req.NoError(err)
		req.Equal(p.ID, got.ID)
		req.Equal(models.StatusPending, got.Status)
		req.True(p.ExpiresAt.Equal(got.ExpiresAt))
		req.Nil(got.SessionID)
	})

	t.Run("should reject an identical pending proposal", func(t *testing.T) {
		req := require.New(t)
		s := setupStore(t)

		req.NoError(s.CreateProposal(ctx, newProposal(now)))
		err := s.CreateProposal(ctx, newProposal(now))
		req.ErrorIs(err, apperrors.ErrDuplicatePending)
	})

	t.Run("should allow a new proposal once the previous one resolved", func(t *testing.T) {
		req := require.New(t)
		s := setupStore(t)
		first := newProposal(now)
		req.NoError(s.CreateProposal(ctx, first))

		_, err := s.TransitionProposal(ctx, first.ID, models.Transition{
			From: []models.ProposalStatus{models.StatusPending}, To: models.StatusRejected, At: now,
		})
		req.NoError(err)
		req.NoError(s.CreateProposal(ctx, newProposal(now)))
	})

	t.Run("should return not found for unknown ids", func(t *testing.T) {
		req := require.New(t)
		s := setupStore(t)
		_, err := s.GetProposal(ctx, uuid.New())
		req.ErrorIs(err, apperrors.ErrNotFound)
	})
}

func TestStore_TransitionProposal(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("should accept and create exactly one session", func(t *testing.T) {
		req := require.New(t)
		s := setupStore(t)
		p := newProposal(now)
		req.NoError(s.CreateProposal(ctx, p))
		sess := newSession(p, now)

		res, err := s.TransitionProposal(ctx, p.ID, acceptTransition(sess, now))
		req.NoError(err)
		req.Equal(models.StatusAccepted, res.Proposal.Status)
		req.Equal(sess.ID, *res.Proposal.SessionID)

		stored, err := s.GetSessionByProposal(ctx, p.ID)
		req.NoError(err)
		req.Equal([2]string{"alice", "bob"}, stored.ParticipantIDs)

		_, err = s.TransitionProposal(ctx, p.ID, acceptTransition(newSession(p, now), now))
		req.ErrorIs(err, apperrors.ErrNotPending)
	})

	t.Run("should refuse to accept past the horizon", func(t *testing.T) {
		req := require.New(t)
		s := setupStore(t)
		p := newProposal(now)
		req.NoError(s.CreateProposal(ctx, p))

		_, err := s.TransitionProposal(ctx, p.ID, acceptTransition(newSession(p, now), p.ExpiresAt.Add(time.Second)))
		req.ErrorIs(err, apperrors.ErrExpired)

		got, err := s.GetProposal(ctx, p.ID)
		req.NoError(err)
		req.Equal(models.StatusPending, got.Status)
	})

	t.Run("should let exactly one concurrent transition win", func(t *testing.T) {
		req := require.New(t)
		s := setupStore(t)
		p := newProposal(now)
		req.NoError(s.CreateProposal(ctx, p))

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			wins     int
			notReady int
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tr := acceptTransition(newSession(p, now), now)
				if i%2 == 0 {
					tr = models.Transition{From: []models.ProposalStatus{models.StatusPending}, To: models.StatusRejected, At: now}
				}
				_, err := s.TransitionProposal(ctx, p.ID, tr)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, apperrors.ErrNotPending):
					notReady++
				}
			}(i)
		}
		wg.Wait()
		req.Equal(1, wins)
		req.Equal(15, notReady)
	})

	t.Run("should end the session when forfeiting an accepted proposal", func(t *testing.T) {
		req := require.New(t)
		s := setupStore(t)
		p := newProposal(now)
		req.NoError(s.CreateProposal(ctx, p))
		sess := newSession(p, now)
		_, err := s.TransitionProposal(ctx, p.ID, acceptTransition(sess, now))
		req.NoError(err)

		later := now.Add(time.Hour)
		res, err := s.TransitionProposal(ctx, p.ID, models.Transition{
			From:        models.SourcesOf(models.StatusForfeited),
			To:          models.StatusForfeited,
			At:          later,
			ForfeitedBy: "bob",
		})
		req.NoError(err)
		req.Equal(models.StatusForfeited, res.Proposal.Status)
		req.Equal("bob", *res.Proposal.ForfeitedBy)
		req.True(now.Equal(*res.Proposal.ResolvedAt))
		req.NotNil(res.EndedSession)
		req.True(later.Equal(*res.EndedSession.EndedAt))

		_, err = s.EndSession(ctx, sess.ID, later)
		req.ErrorIs(err, apperrors.ErrAlreadyEnded)
	})
}

func TestStore_ListProposals(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := setupStore(t)
	now := time.Now().UTC()

	older := newProposal(now)
	newer := newProposal(now.Add(time.Minute))
	newer.OfferedSkillID = "rust"
	incoming := newProposal(now.Add(2 * time.Minute))
	incoming.ProposerID, incoming.CounterpartyID = "carol", "alice"
	for _, p := range []*models.ExchangeProposal{older, newer, incoming} {
		req.NoError(s.CreateProposal(ctx, p))
	}
	_, err := s.TransitionProposal(ctx, older.ID, models.Transition{
		From: []models.ProposalStatus{models.StatusPending}, To: models.StatusRejected, At: now,
	})
	req.NoError(err)

	sent, received, err := s.ListProposals(ctx, store.ProposalFilter{ActorID: "alice"})
	req.NoError(err)
	req.Len(sent, 2)
	req.Equal(newer.ID, sent[0].ID)
	req.Equal(older.ID, sent[1].ID)
	req.Len(received, 1)
	req.Equal(incoming.ID, received[0].ID)

	sent, received, err = s.ListProposals(ctx, store.ProposalFilter{ActorID: "alice", Status: models.StatusPending})
	req.NoError(err)
	req.Len(sent, 1)
	req.Equal(newer.ID, sent[0].ID)
	req.Len(received, 1)
}

func TestStore_ListOverdue(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := setupStore(t)
	now := time.Now().UTC()

	overdue := newProposal(now.Add(-40 * 24 * time.Hour))
	overdue.ExpiresAt = now.Add(-time.Hour)
	fresh := newProposal(now)
	fresh.OfferedSkillID = "rust"
	accepted := newProposal(now.Add(-40 * 24 * time.Hour))
	accepted.OfferedSkillID = "chess"
	accepted.ExpiresAt = now.Add(-2 * time.Hour)
	for _, p := range []*models.ExchangeProposal{overdue, fresh, accepted} {
		req.NoError(s.CreateProposal(ctx, p))
	}
	_, err := s.TransitionProposal(ctx, accepted.ID, acceptTransition(newSession(accepted, now), accepted.CreatedAt))
	req.NoError(err)

	ids, err := s.ListOverdue(ctx, now, 10)
	req.NoError(err)
	req.Equal([]uuid.UUID{overdue.ID}, ids)
}

func TestStore_Messages(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	setup := func(t *testing.T) (*Store, *models.ExchangeSession) {
		s := setupStore(t)
		p := newProposal(now)
		require.NoError(t, s.CreateProposal(ctx, p))
		sess := newSession(p, now)
		_, err := s.TransitionProposal(ctx, p.ID, acceptTransition(sess, now))
		require.NoError(t, err)
		return s, sess
	}

	t.Run("should assign strictly increasing sequences under concurrency", func(t *testing.T) {
		req := require.New(t)
		s, sess := setup(t)

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sender := sess.ParticipantIDs[i%2]
				msg := &models.Message{
					ID: uuid.New(), SessionID: sess.ID, SenderID: sender,
					Payload: models.TextPayload{Text: "hello"}, SentAt: time.Now().UTC(),
				}
				errs <- s.AppendMessage(ctx, msg)
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			req.NoError(err)
		}

		msgs, total, err := s.ListMessages(ctx, sess.ID, 0, 100)
		req.NoError(err)
		req.Equal(20, total)
		req.Len(msgs, 20)
		for i, m := range msgs {
			req.Equal(int64(20-i), m.Seq)
		}
	})

	t.Run("should never let sent_at go backwards along the sequence", func(t *testing.T) {
		req := require.New(t)
		s, sess := setup(t)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					// stamps taken before the write, deliberately out of order
					stamp := now.Add(time.Duration((i*10+j)%7) * time.Millisecond)
					require.NoError(t, s.AppendMessage(ctx, &models.Message{
						ID: uuid.New(), SessionID: sess.ID, SenderID: sess.ParticipantIDs[i%2],
						Payload: models.TextPayload{Text: "m"}, SentAt: stamp,
					}))
				}
			}(i)
		}
		wg.Wait()

		msgs, total, err := s.ListMessages(ctx, sess.ID, 0, 200)
		req.NoError(err)
		req.Equal(160, total)
		for i := 1; i < len(msgs); i++ {
			// newest first
			req.Equal(msgs[i-1].Seq-1, msgs[i].Seq)
			req.False(msgs[i-1].SentAt.Before(msgs[i].SentAt), "seq %d sent before seq %d", msgs[i-1].Seq, msgs[i].Seq)
		}
	})

	t.Run("should page backwards from the most recent message", func(t *testing.T) {
		req := require.New(t)
		s, sess := setup(t)
		for i := 0; i < 5; i++ {
			req.NoError(s.AppendMessage(ctx, &models.Message{
				ID: uuid.New(), SessionID: sess.ID, SenderID: "alice",
				Payload: models.TextPayload{Text: "m"}, SentAt: now.Add(time.Duration(i) * time.Second),
			}))
		}

		msgs, total, err := s.ListMessages(ctx, sess.ID, 2, 2)
		req.NoError(err)
		req.Equal(5, total)
		req.Equal([]int64{3, 2}, []int64{msgs[0].Seq, msgs[1].Seq})

		msgs, _, err = s.ListMessages(ctx, sess.ID, 4, 2)
		req.NoError(err)
		req.Len(msgs, 1)
		req.Equal(int64(1), msgs[0].Seq)
	})

	t.Run("should refuse appends after the session ended", func(t *testing.T) {
		req := require.New(t)
		s, sess := setup(t)

		ended, err := s.EndSession(ctx, sess.ID, now)
		req.NoError(err)
		req.True(ended.Ended())

		err = s.AppendMessage(ctx, &models.Message{
			ID: uuid.New(), SessionID: sess.ID, SenderID: "bob",
			Payload: models.TextPayload{Text: "late"}, SentAt: now,
		})
		req.ErrorIs(err, apperrors.ErrSessionClosed)

		active, total, err := s.ListActiveSessions(ctx, "bob", 0, 10)
		req.NoError(err)
		req.Zero(total)
		req.Empty(active)
	})
}

func TestStore_SeparatorsInIDs(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	withParties := func(proposer, counterparty string) *models.ExchangeProposal {
		p := newProposal(now)
		p.ProposerID, p.CounterpartyID = proposer, counterparty
		return p
	}

	t.Run("should keep pending proposals apart when ids contain colons", func(t *testing.T) {
		req := require.New(t)
		s := setupStore(t)

		req.NoError(s.CreateProposal(ctx, withParties("ann:x", "bob")))
		req.NoError(s.CreateProposal(ctx, withParties("ann", "x:bob")))
	})

	t.Run("should not leak another actor's proposals through a shared prefix", func(t *testing.T) {
		req := require.New(t)
		s := setupStore(t)

		mine := withParties("ann", "bob")
		req.NoError(s.CreateProposal(ctx, mine))
		req.NoError(s.CreateProposal(ctx, withParties("ann:x", "carol")))

		sent, received, err := s.ListProposals(ctx, store.ProposalFilter{ActorID: "ann"})
		req.NoError(err)
		req.Empty(received)
		req.Len(sent, 1)
		req.Equal(mine.ID, sent[0].ID)
	})

	t.Run("should not leak another actor's sessions through a shared prefix", func(t *testing.T) {
		req := require.New(t)
		s := setupStore(t)

		p := withParties("ann:x", "bob")
		req.NoError(s.CreateProposal(ctx, p))
		_, err := s.TransitionProposal(ctx, p.ID, acceptTransition(newSession(p, now), now))
		req.NoError(err)

		active, total, err := s.ListActiveSessions(ctx, "ann", 0, 10)
		req.NoError(err)
		req.Zero(total)
		req.Empty(active)
	})
}
