package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnviron(t *testing.T) {
	t.Run("should apply defaults and compose the database url", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
		t.Setenv("PGHOST", "db")
		t.Setenv("PGDATABASE", "swap")

		cfg, err := FromEnviron()
		req.NoError(err)
		req.Equal(8080, cfg.Port)
		req.Equal(8081, cfg.WSPort)
		req.Equal(StorageBadger, cfg.StorageDriver)
		req.Equal(720*time.Hour, cfg.ProposalTTL)
		req.Equal("0 0 * * *", cfg.SweepSchedule)
		req.Equal(500, cfg.SweepBatchSize)
		req.Equal("postgres://skillswap:skillswap@db:5432/swap?sslmode=disable", cfg.DatabaseURL)
	})

	t.Run("should require a jwt secret", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("JWT_SECRET", "")

		_, err := FromEnviron()
		req.ErrorContains(err, "JWT_SECRET is required")
	})

	t.Run("should reject a short secret in production only", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("JWT_SECRET", "short")

		_, err := FromEnviron()
		req.ErrorContains(err, "at least 32 characters")

		t.Setenv("APP_ENV", "development")
		cfg, err := FromEnviron()
		req.NoError(err)
		req.False(cfg.IsProduction())
	})

	t.Run("should reject an unknown storage driver", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
		t.Setenv("STORAGE_DRIVER", "mongo")

		_, err := FromEnviron()
		req.ErrorContains(err, "unknown STORAGE_DRIVER")
	})

	t.Run("should parse durations", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
		t.Setenv("PROPOSAL_TTL", "48h")

		cfg, err := FromEnviron()
		req.NoError(err)
		req.Equal(48*time.Hour, cfg.ProposalTTL)
	})
}

func TestSlogLevel(t *testing.T) {
	req := require.New(t)
	req.Equal(slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	req.Equal(slog.LevelWarn, (&Config{LogLevel: "warning"}).SlogLevel())
	req.Equal(slog.LevelInfo, (&Config{LogLevel: "bogus"}).SlogLevel())
}
