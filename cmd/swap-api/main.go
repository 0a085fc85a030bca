package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/skillswap/exchange-api/internal/catalog"
	"github.com/skillswap/exchange-api/internal/config"
	"github.com/skillswap/exchange-api/internal/db"
	"github.com/skillswap/exchange-api/internal/middleware"
	"github.com/skillswap/exchange-api/internal/notify"
	"github.com/skillswap/exchange-api/internal/services/auth"
	"github.com/skillswap/exchange-api/internal/services/exchange"
	"github.com/skillswap/exchange-api/internal/services/session"
	"github.com/skillswap/exchange-api/internal/services/upload"
	"github.com/skillswap/exchange-api/internal/store"
	"github.com/skillswap/exchange-api/internal/store/badgerdb"
	"github.com/skillswap/exchange-api/internal/store/postgres"
	"github.com/skillswap/exchange-api/internal/sweeper"
	"github.com/skillswap/exchange-api/internal/utils"
	"github.com/skillswap/exchange-api/internal/websocket"
)

const (
	notifyBuffer      = 256
	notifySinkTimeout = 5 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(slog.Default())
	if err != nil {
		return err
	}
	log := cfg.NewLogger()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cat, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()

	// Session-end fanout: log sink now, gateway sink once the gateway exists.
	dispatcher := notify.NewDispatcher(log, notifyBuffer, notifySinkTimeout, notify.NewLogSink(log))
	sessions := session.NewService(st, dispatcher, log)
	registry := exchange.NewRegistry(st, cat, sessions, log, cfg.ProposalTTL)

	jwtService := utils.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	gateway := websocket.NewManager(sessions, log)
	sessions.SetBroadcaster(gateway)
	dispatcher.Add(gateway)
	sweep := sweeper.New(st, registry, log, cfg.SweepBatchSize)

	app := fiber.New(fiber.Config{
		AppName:         "SkillSwap Exchange API",
		ErrorHandler:    middleware.ErrorHandler(log),
		StructValidator: utils.NewStructValidator(),
		BodyLimit:       upload.MaxFileSize + 1<<20,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Token"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authMiddleware := middleware.AuthMiddleware(jwtService)
	auth.NewAuthService(cfg, jwtService, log).SetupRoutes(app)
	registry.SetupRoutes(app, authMiddleware)
	if cfg.CloudinaryConfig.CloudName != "" {
		media, err := upload.NewCloudinaryStore(cfg.CloudinaryConfig)
		if err != nil {
			return err
		}
		upload.NewService(media, cfg.CloudinaryConfig, log).SetupRoutes(app, authMiddleware)
	} else {
		log.Warn("CLOUDINARY_CLOUD_NAME not set, attachment uploads disabled")
	}
	sessions.SetupRoutes(app, authMiddleware)
	sweep.SetupRoutes(app, middleware.AdminMiddleware(cfg.AdminToken))

	wsServer := websocket.NewServer(fmt.Sprintf(":%d", cfg.WSPort), gateway, jwtService)

	// Background workers start only once all wiring succeeded.
	// The dispatcher outlives ctx so queued session-end events drain on shutdown.
	go dispatcher.Run(context.WithoutCancel(ctx))
	defer dispatcher.Close()
	if err := sweep.Start(ctx, cfg.SweepSchedule); err != nil {
		return err
	}

	errChan := make(chan error, 2)
	go func() {
		log.Info("starting HTTP API", "port", cfg.Port, "storage", cfg.StorageDriver)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port), fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()
	go func() {
		log.Info("starting realtime gateway", "port", cfg.WSPort)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("websocket server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
	case runErr = <-errChan:
		log.Error("server failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	sweep.Stop(shutdownCtx)
	// Drain session-end events while the gateway can still relay them.
	dispatcher.Close()
	gateway.Shutdown()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("websocket shutdown", "error", err)
	}

	log.Info("program stopped cleanly")
	return runErr
}

// openStorage picks the backend and the matching catalog.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, catalog.ICatalog, func(), error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := db.Connect(ctx, cfg, log)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		cat := catalog.NewPostgres(pool)
		if cfg.CatalogFile != "" {
			seed, err := catalog.ReadSeed(cfg.CatalogFile)
			if err != nil {
				pool.Close()
				return nil, nil, nil, err
			}
			if err := cat.Import(ctx, seed); err != nil {
				pool.Close()
				return nil, nil, nil, fmt.Errorf("import catalog: %w", err)
			}
			log.Info("catalog imported", "file", cfg.CatalogFile, "skills", len(seed.Skills), "profiles", len(seed.Profiles))
		}
		st := postgres.New(pool, log)
		return st, cat, func() {
			log.Info("closing database pool")
			_ = st.Close()
		}, nil

	default:
		st, err := badgerdb.Open(cfg.BadgerPath, log)
		if err != nil {
			return nil, nil, nil, err
		}
		cat := catalog.NewStatic(catalog.Seed{})
		if cfg.CatalogFile != "" {
			if cat, err = catalog.LoadFile(cfg.CatalogFile); err != nil {
				_ = st.Close()
				return nil, nil, nil, err
			}
		} else {
			log.Warn("CATALOG_FILE not set, skill catalog is empty")
		}
		return st, cat, func() {
			log.Info("closing BadgerDB")
			_ = st.Close()
		}, nil
	}
}
