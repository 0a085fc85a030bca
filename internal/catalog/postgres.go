package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/db"
	"github.com/skillswap/exchange-api/internal/models"
)

const profileQuery = `
	SELECT sp.actor_id, sp.name, sp.reputation, sp.is_active,
	       COALESCE(array_agg(ps.skill_id ORDER BY ps.skill_id) FILTER (WHERE ps.relation = 'teaches'), '{}'),
	       COALESCE(array_agg(ps.skill_id ORDER BY ps.skill_id) FILTER (WHERE ps.relation = 'wants'), '{}')
	FROM skill_profiles sp
	LEFT JOIN profile_skills ps ON ps.actor_id = sp.actor_id`

// Postgres reads the catalog from its read model tables.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (c *Postgres) Skill(ctx context.Context, id string) (*models.Skill, error) {
	ctx, cancel := db.GetContext(ctx)
	defer cancel()

	var s models.Skill
	err := c.pool.QueryRow(ctx, `SELECT id, name, category FROM skills WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("skill %q: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Postgres) Profile(ctx context.Context, actorID string) (*models.Profile, error) {
	ctx, cancel := db.GetContext(ctx)
	defer cancel()

	p, err := scanProfile(c.pool.QueryRow(ctx, profileQuery+`
		WHERE sp.actor_id = $1
		GROUP BY sp.actor_id`, actorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile %q: %w", actorID, apperrors.ErrNotFound)
	}
	return p, err
}

func (c *Postgres) ProfilesTeaching(ctx context.Context, skillID string) ([]models.Profile, error) {
	ctx, cancel := db.GetContext(ctx)
	defer cancel()

	rows, err := c.pool.Query(ctx, profileQuery+`
		WHERE sp.actor_id IN (SELECT actor_id FROM profile_skills WHERE skill_id = $1 AND relation = 'teaches')
		GROUP BY sp.actor_id`, skillID)
	if err != nil {
		return nil, fmt.Errorf("query profiles teaching %q: %w", skillID, err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Import upserts a seed into the read model. Skill lists of every seeded
// profile are replaced.
func (c *Postgres) Import(ctx context.Context, seed Seed) error {
	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		for _, s := range seed.Skills {
			if _, err := tx.Exec(ctx, `
				INSERT INTO skills (id, name, category) VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category`,
				s.ID, s.Name, s.Category); err != nil {
				return fmt.Errorf("import skill %q: %w", s.ID, err)
			}
		}
		for _, p := range seed.Profiles {
			if _, err := tx.Exec(ctx, `
				INSERT INTO skill_profiles (actor_id, name, reputation, is_active) VALUES ($1, $2, $3, $4)
				ON CONFLICT (actor_id) DO UPDATE
				SET name = EXCLUDED.name, reputation = EXCLUDED.reputation, is_active = EXCLUDED.is_active`,
				p.ID, p.Name, p.Reputation, p.Active); err != nil {
				return fmt.Errorf("import profile %q: %w", p.ID, err)
			}
			if _, err := tx.Exec(ctx, `DELETE FROM profile_skills WHERE actor_id = $1`, p.ID); err != nil {
				return err
			}
			batch := &pgx.Batch{}
			for _, id := range p.Teaches {
				batch.Queue(`INSERT INTO profile_skills (actor_id, skill_id, relation) VALUES ($1, $2, 'teaches') ON CONFLICT DO NOTHING`, p.ID, id)
			}
			for _, id := range p.Wants {
				batch.Queue(`INSERT INTO profile_skills (actor_id, skill_id, relation) VALUES ($1, $2, 'wants') ON CONFLICT DO NOTHING`, p.ID, id)
			}
			if batch.Len() == 0 {
				continue
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("import skills of profile %q: %w", p.ID, err)
			}
		}
		return nil
	})
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.ID, &p.Name, &p.Reputation, &p.Active, &p.Teaches, &p.Wants); err != nil {
		return nil, err
	}
	return &p, nil
}
