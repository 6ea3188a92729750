package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/config"
	"github.com/dyaogo/pos-superette-sub002/internal/infra"
	"github.com/dyaogo/pos-superette-sub002/internal/repository"
	"github.com/dyaogo/pos-superette-sub002/internal/router"
	"github.com/dyaogo/pos-superette-sub002/internal/service"
	"github.com/dyaogo/pos-superette-sub002/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	// Pretty output until config says otherwise
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	// Redis backs the report queues and, optionally, the session store.
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		if cfg.SessionStore == config.StoreRedis {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		log.Warn().Err(err).Msg("redis unavailable, report jobs disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Storage ──────────────────────────────────────────────────────────────
	store := newSessionStore(cfg, db, rdb)

	stockCB := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		Name:             "stock_ledger",
		FailureThreshold: cfg.StockBreakerFailures,
		SuccessThreshold: cfg.StockBreakerSuccesses,
		OpenTimeout:      cfg.StockBreakerOpenTimeout,
		OnStateChange:    infra.ObserveBreaker,
	})
	stock := repository.NewBreakerStockLedger(repository.NewStockLedger(db), stockCB)
	sales := repository.NewSalesLedger(db)

	// ── Workers ──────────────────────────────────────────────────────────────
	// Handlers are wired here (composition root) so the pool has access to
	// every infrastructure dependency.
	var reports service.ReportEnqueuer
	if rdb != nil {
		dispatcher := worker.NewDispatcher(rdb)
		reports = dispatcher

		mailer := infra.NewMailer(cfg)
		emailTo := cfg.ReportEmailTo
		if !mailer.Enabled() {
			emailTo = ""
		}
		worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, worker.Handlers{
			worker.JobReport: worker.NewReportWorker(cfg.ReportStoragePath, emailTo, dispatcher),
			worker.JobEmail:  worker.NewEmailWorker(mailer),
		})
	}

	// ── Services ─────────────────────────────────────────────────────────────
	audit := service.NewAuditLog(store, reports)
	cash := service.NewCashService(store, sales, audit, cfg.RegisterID)
	inventory := service.NewInventoryService(store, stock, audit)

	flusherDone := worker.StartDraftFlusher(ctx, inventory, cfg.DraftFlushInterval)

	r := router.New(cfg, router.Deps{
		Cash:         cash,
		Inventory:    inventory,
		DB:           db,
		Redis:        rdb,
		StockBreaker: stockCB,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("session_store", cfg.SessionStore).
			Str("register_id", cfg.RegisterID).
			Msg("reconciliation engine listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	// Stop workers; the flusher persists staged counts one last time.
	cancel()
	<-flusherDone
	log.Info().Msg("server exited")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func newSessionStore(cfg *config.Config, db *gorm.DB, rdb *redis.Client) repository.SessionStore {
	switch cfg.SessionStore {
	case config.StoreRedis:
		return repository.NewRedisSessionStore(rdb)
	case config.StoreMemory:
		if cfg.IsProduction() {
			log.Warn().Msg("memory session store in production: open sessions are lost on restart")
		}
		return repository.NewMemorySessionStore()
	default:
		return repository.NewSessionStore(db)
	}
}
