package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm_inbox_backend/internal/email"
	"crm_inbox_backend/internal/events"
	apphttp "crm_inbox_backend/internal/http"
	"crm_inbox_backend/internal/http/router"
	"crm_inbox_backend/internal/ingest"
	"crm_inbox_backend/internal/media"
	"crm_inbox_backend/internal/scheduler"
	"crm_inbox_backend/migrations"
	"crm_inbox_backend/platform/config"
	"crm_inbox_backend/platform/db"
	"crm_inbox_backend/platform/logger"
	"crm_inbox_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	ingestModule, err := ingest.NewModule(pool, eventBus, val, cfg, log)
	if err != nil {
		log.Error("failed to initialize ingest module", "error", err)
		panic("failed to initialize ingest module: " + err.Error())
	}

	// Background task dispatch (optional; requires Redis)
	if cfg.GetRedisURL() != "" {
		taskClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize task client", "error", err)
			panic("failed to initialize task client: " + err.Error())
		}
		defer taskClient.Close()
		scheduler.NewDispatcher(taskClient, log).RegisterHandlers(eventBus)
		log.Info("background task dispatcher registered")
	} else {
		log.Warn("REDIS_URL not configured; background tasks disabled")
	}

	// Raw payload archival (optional; requires MinIO)
	if cfg.IsMinIOEnabled() {
		store, err := media.NewStore(cfg)
		if err != nil {
			log.Error("failed to initialize media store", "error", err)
			panic("failed to initialize media store: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure media bucket", 5, 2*time.Second, func() error {
			return store.EnsureBucketExists(ctx)
		}); err != nil {
			log.Error("failed to ensure media bucket exists", "error", err)
			panic("failed to ensure media bucket exists: " + err.Error())
		}
		media.NewArchiver(store, ingestModule.MessageRepository(), log).RegisterHandlers(eventBus)
		log.Info("media archiver registered", "bucket", cfg.GetMinioBucketInboundMedia())
	}

	// ========================================================================
	// HTTP Layer + IMAP Intake
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			ingestModule,
		},
	}

	engine := router.New(app)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		return engine.Run(cfg.HTTPAddr)
	})

	group.Go(func() error {
		email.NewPoller(ingestModule.Pipeline(), cfg, log).Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
