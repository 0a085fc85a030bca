package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	StorageBadger   = "badger"
	StoragePostgres = "postgres"

	minProductionSecretLen = 32
)

// Config holds the whole application configuration.
type Config struct {
	Port             int           `env:"PORT,default=8080"`
	WSPort           int           `env:"WS_PORT,default=8081"`
	AppEnv           string        `env:"APP_ENV,default=production"`
	JWTSecret        string        `env:"JWT_SECRET"`
	TokenTTL         time.Duration `env:"TOKEN_TTL,default=720h"`
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN"`
	AdminToken       string        `env:"ADMIN_TOKEN"`
	LogLevel         string        `env:"LOG_LEVEL,default=info"`

	StorageDriver string `env:"STORAGE_DRIVER,default=badger"`
	BadgerPath    string `env:"BADGER_PATH,default=./data/badger"`
	CatalogFile   string `env:"CATALOG_FILE"`

	ProposalTTL    time.Duration `env:"PROPOSAL_TTL,default=720h"`
	SweepSchedule  string        `env:"SWEEP_SCHEDULE,default=0 0 * * *"`
	SweepBatchSize int           `env:"SWEEP_BATCH_SIZE,default=500"`

	DatabaseConfig   DatabaseConfig
	CloudinaryConfig CloudinaryConfig

	// DatabaseURL is composed from DatabaseConfig.
	DatabaseURL string
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host     string `env:"PGHOST,default=localhost"`
	Port     string `env:"PGPORT,default=5432"`
	User     string `env:"PGUSER,default=skillswap"`
	Password string `env:"PGPASSWORD,default=skillswap"`
	Name     string `env:"PGDATABASE,default=skillswap"`
	SSLMode  string `env:"PGSSLMODE,default=disable"`
	MaxConns int32  `env:"PGMAXCONNS,default=10"`
}

// CloudinaryConfig holds the attachment storage settings.
type CloudinaryConfig struct {
	CloudName    string `env:"CLOUDINARY_CLOUD_NAME"`
	APIKey       string `env:"CLOUDINARY_API_KEY"`
	APISecret    string `env:"CLOUDINARY_API_SECRET"`
	UploadPreset string `env:"CLOUDINARY_UPLOAD_PRESET,default=skillswap"`
	UploadFolder string `env:"CLOUDINARY_UPLOAD_FOLDER,default=skillswap/sessions"`
}

// LoadConfig reads .env when present and then the process environment.
func LoadConfig(log *slog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info(".env file not found, using process environment")
	}
	return FromEnviron()
}

// FromEnviron builds the configuration from the process environment only.
func FromEnviron() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	db := cfg.DatabaseConfig
	cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		db.User, db.Password, db.Host, db.Port, db.Name, db.SSLMode)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.JWTSecret) < minProductionSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters in production", minProductionSecretLen))
	}
	switch c.StorageDriver {
	case StorageBadger, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.ProposalTTL <= 0 {
		errs = append(errs, errors.New("PROPOSAL_TTL must be positive"))
	}
	if c.SweepBatchSize <= 0 {
		errs = append(errs, errors.New("SWEEP_BATCH_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the JSON logger every component receives.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.SlogLevel()}))
}
