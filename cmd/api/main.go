package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crmcore_backend/internal/assignment"
	"crmcore_backend/internal/events"
	apphttp "crmcore_backend/internal/http"
	"crmcore_backend/internal/http/router"
	"crmcore_backend/internal/leads"
	"crmcore_backend/internal/scheduler"
	"crmcore_backend/internal/stages"
	"crmcore_backend/platform/cache"
	"crmcore_backend/platform/config"
	"crmcore_backend/platform/db"
	"crmcore_backend/platform/logger"
	"crmcore_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
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
		return db.RunMigrations(ctx, cfg, "migrations")
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

	stagesModule := stages.NewModule(pool, val, eventBus)
	assignmentModule := assignment.NewModule(pool, val, log)
	leadsModule := leads.NewModule(pool, assignmentModule.Service(), stagesModule.Service(), val, eventBus)

	// Background pipeline health sweep; requires Redis.
	runHealthSweep(ctx, cfg, stagesModule.Service(), eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			stagesModule,
			leadsModule,
			assignmentModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// runHealthSweep starts the asynq worker and periodic scheduler for the
// pipeline health check when Redis is configured; without Redis the sweep
// is disabled and validate stays request-driven only. Cached reports are
// dropped whenever a tenant edits its stage catalog.
func runHealthSweep(ctx context.Context, cfg *config.Config, checker scheduler.PipelineChecker, bus events.Bus, log *logger.Logger) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; pipeline health sweep disabled")
		return
	}

	reports, err := cache.New(cfg.GetRedisURL(), cfg.GetReportCacheTTL())
	if err != nil {
		log.Error("failed to initialize report cache", "error", err)
		return
	}

	bus.Subscribe(events.StageCatalogChanged{}.EventName(), scheduler.NewCatalogInvalidator(reports))

	worker, err := scheduler.NewWorker(cfg, checker, reports, log)
	if err != nil {
		log.Error("failed to initialize health sweep worker", "error", err)
		return
	}

	client, err := scheduler.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to initialize health sweep scheduler", "error", err)
		return
	}

	go worker.Run(ctx)
	go func() {
		<-ctx.Done()
		client.Shutdown()
	}()
	go func() {
		if err := client.Run(); err != nil {
			log.Error("health sweep scheduler stopped", "error", err)
		}
	}()

	log.Info("pipeline health sweep enabled", "interval", cfg.GetHealthSweepInterval().String())
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
