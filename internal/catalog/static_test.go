package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/models"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()

	t.Run("should load skills and profiles from yaml", func(t *testing.T) {
		req := require.New(t)
		c, err := LoadFile(filepath.Join("testdata", "catalog.yaml"))
		req.NoError(err)

		skill, err := c.Skill(ctx, "go")
		req.NoError(err)
		req.Equal("Go programming", skill.Name)
		req.Equal("software", skill.Category)

		bob, err := c.Profile(ctx, "bob")
		req.NoError(err)
		req.Equal([]string{"spanish", "go"}, bob.Teaches)
		req.InDelta(4.9, bob.Reputation, 0.0001)
		req.True(bob.Active)
	})

	t.Run("should return not found for unknown ids", func(t *testing.T) {
		req := require.New(t)
		c := NewStatic(Seed{})

		_, err := c.Skill(ctx, "nope")
		req.ErrorIs(err, apperrors.ErrNotFound)
		_, err = c.Profile(ctx, "nobody")
		req.ErrorIs(err, apperrors.ErrNotFound)
	})

	t.Run("should list profiles teaching a skill", func(t *testing.T) {
		req := require.New(t)
		c, err := LoadFile(filepath.Join("testdata", "catalog.yaml"))
		req.NoError(err)

		teaching, err := c.ProfilesTeaching(ctx, "spanish")
		req.NoError(err)
		ids := []string{}
		for _, p := range teaching {
			ids = append(ids, p.ID)
		}
		req.ElementsMatch([]string{"bob", "carol"}, ids)
	})

	t.Run("should not leak internal slices to callers", func(t *testing.T) {
		req := require.New(t)
		c := NewStatic(Seed{Profiles: []models.Profile{{ID: "alice", Teaches: []string{"guitar"}}}})

		p, err := c.Profile(ctx, "alice")
		req.NoError(err)
		p.Teaches[0] = "drums"

		again, err := c.Profile(ctx, "alice")
		req.NoError(err)
		req.Equal([]string{"guitar"}, again.Teaches)
	})

	t.Run("should reject a seed entry without id", func(t *testing.T) {
		req := require.New(t)
		path := filepath.Join(t.TempDir(), "bad.yaml")
		req.NoError(os.WriteFile(path, []byte("skills:\n  - name: Unnamed\n"), 0o600))

		_, err := LoadFile(path)
		req.ErrorContains(err, "has no id")
	})
}
