package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const DefaultBatchSize = 500

// OverdueLister finds pending proposals past their horizon.
type OverdueLister interface {
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// Expirer moves one proposal to expired; false means it was no longer pending.
type Expirer interface {
	Expire(ctx context.Context, proposalID uuid.UUID) (bool, error)
}

// Sweeper periodically expires overdue pending proposals. Runs never
// overlap: a trigger during a run waits for it.
type Sweeper struct {
	lister    OverdueLister
	expirer   Expirer
	log       *slog.Logger
	batchSize int
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func New(lister OverdueLister, expirer Expirer, log *slog.Logger, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Sweeper{
		lister:    lister,
		expirer:   expirer,
		log:       log.With("component", "expiry_sweeper"),
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules sweeps with a standard five-field cron expression in UTC.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(schedule, func() {
		count, err := s.RunNow(ctx)
		if err != nil {
			s.log.Error("scheduled sweep failed", "expired_count", count, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()
	s.log.Info("expiry sweeper scheduled", "schedule", schedule)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunNow expires every proposal overdue at the start of the run and
// returns how many it expired. A failure on one proposal is logged and
// skipped; only a listing failure aborts the run.
func (s *Sweeper) RunNow(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	now := s.now()
	attempted := make(map[uuid.UUID]struct{})
	expired, failed := 0, 0

	for {
		// Failed proposals stay pending and keep their place in the listing.
		limit := s.batchSize + failed
		ids, err := s.lister.ListOverdue(ctx, now, limit)
		if err != nil {
			return expired, fmt.Errorf("list overdue proposals: %w", err)
		}

		fresh := 0
		for _, id := range ids {
			if _, seen := attempted[id]; seen {
				continue
			}
			attempted[id] = struct{}{}
			fresh++

			ok, err := s.expirer.Expire(ctx, id)
			if err != nil {
				failed++
				s.log.Warn("proposal expiry failed", "proposal_id", id, "error", err)
				continue
			}
			if ok {
				expired++
			}
		}
		if fresh == 0 || len(ids) < limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return expired, err
		}
	}

	s.log.Info("expiry sweep finished",
		"expired_count", expired,
		"failed_count", failed,
		"duration", time.Since(started),
	)
	return expired, nil
}
