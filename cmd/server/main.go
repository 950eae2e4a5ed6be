package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/application/mapping"
	syncapp "github.com/catalogsync/backend/internal/application/sync"
	"github.com/catalogsync/backend/internal/domain/syncrun"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/catalogsync/backend/internal/infrastructure/event"
	"github.com/catalogsync/backend/internal/infrastructure/locking"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/marketplace"
	"github.com/catalogsync/backend/internal/infrastructure/persistence"
	"github.com/catalogsync/backend/internal/infrastructure/scheduler"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting catalog sync engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	// Initialize database connection with the zap-backed gorm logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connected and migrated")

	// Initialize repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	brandRepo := persistence.NewGormBrandRepository(db.DB)
	categoryRepo := persistence.NewGormCategoryRepository(db.DB)
	priceRepo := persistence.NewGormPriceRepository(db.DB)
	stockRepo := persistence.NewGormStockRepository(db.DB)
	mappingRepo := persistence.NewGormMappingRepository(db.DB)
	unmappedRepo := persistence.NewGormUnmappedTokenRepository(db.DB)
	runRepo := persistence.NewGormSyncJobRunRepository(db.DB)
	scheduleRepo := persistence.NewGormScheduleRepository(db.DB)
	systemConfigRepo := persistence.NewGormSystemConfigRepository(db.DB)

	// Run locking: postgres advisory locks by default, Redis when the
	// engine runs as more than one instance
	var locker syncrun.RunLocker
	if cfg.Sync.UseRedisLock {
		redisLocker, err := locking.NewRedisRunLocker(locking.Config{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisLocker.Close(); err != nil {
				log.Error("Error closing Redis locker", zap.Error(err))
			}
		}()
		locker = redisLocker
		log.Info("Using Redis run locks", zap.String("addr", cfg.Redis.Addr()))
	} else {
		locker = persistence.NewAdvisoryLocker(db.DB)
		log.Info("Using postgres advisory run locks")
	}

	// Event bus with the default run report sink
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewRunReportSink(log))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Application services
	registry := marketplace.NewRegistry()
	resolver := mapping.NewResolver(
		mappingRepo,
		unmappedRepo,
		mapping.NewCatalogSource(brandRepo, categoryRepo),
		mapping.ResolverOptions{},
		log,
	)
	orchestrator := syncapp.NewOrchestrator(
		registry,
		systemConfigRepo,
		productRepo,
		priceRepo,
		stockRepo,
		runRepo,
		scheduleRepo,
		locker,
		resolver,
		bus,
		log,
	)
	orchestrator.Configure(cfg.Sync.LockTTL, cfg.Sync.PageRetryAttempts, cfg.Sync.PageRetryBackoff)

	// Scheduler
	sched := scheduler.NewScheduler(scheduler.Config{
		Enabled:           cfg.Scheduler.Enabled,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		ReloadInterval:    cfg.Scheduler.ReloadInterval,
		TickInterval:      cfg.Scheduler.TickInterval,
	}, orchestrator, scheduleRepo, log)

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
	} else {
		log.Info("Scheduler disabled by configuration")
	}

	log.Info("Catalog sync engine started",
		zap.Strings("systems", systemNames(registry)),
	)

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("Scheduler shutdown failed", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Event bus shutdown failed", zap.Error(err))
	}
	log.Info("Catalog sync engine stopped")
}

func systemNames(registry *marketplace.Registry) []string {
	codes := registry.SupportedSystems()
	names := make([]string, 0, len(codes))
	for _, code := range codes {
		names = append(names, code.String())
	}
	return names
}
