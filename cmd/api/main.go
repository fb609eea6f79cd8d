package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salon-magik-hub/config"
	httpHandler "salon-magik-hub/internal/adapter/http/handler"
	"salon-magik-hub/internal/adapter/provider"
	pgStorage "salon-magik-hub/internal/adapter/storage/postgres"
	redisStorage "salon-magik-hub/internal/adapter/storage/redis"
	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/internal/service"
	"salon-magik-hub/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting SalonMagik wallet hub")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	entryRepo := pgStorage.NewEntryRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	destRepo := pgStorage.NewDestinationRepo(pool)
	transactor := pgStorage.NewTransactor(pool)
	retrier := pgStorage.NewRetrier(log)
	idGen := pgStorage.NewULIDGenerator()

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	transferClient := provider.NewTransferClient(cfg.Provider, log)

	// Initialize business services
	ledgerSvc := service.NewLedgerService(
		walletRepo,
		entryRepo,
		idempotencyCache,
		transactor,
		retrier,
		idGen,
		log,
	)
	withdrawalSvc := service.NewWithdrawalService(
		withdrawalRepo,
		destRepo,
		walletRepo,
		ledgerSvc,
		transferClient,
		log,
	)
	settlementSvc := service.NewSettlementService(
		withdrawalRepo,
		entryRepo,
		ledgerSvc,
		sigSvc,
		cfg.Provider.WebhookSecret,
		log,
	)

	// Stuck-withdrawal monitor
	monitor := service.NewSettlementMonitor(
		withdrawalRepo,
		cfg.Settlement.MonitorInterval,
		cfg.Settlement.StuckThreshold,
		log,
	)
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go monitor.Run(monitorCtx)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledgerSvc,
		WithdrawalSvc:  withdrawalSvc,
		SettlementSvc:  settlementSvc,
		DestRepo:       destRepo,
		TokenSvc:       tokenSvc,
		PlatformKey:    cfg.JWT.PlatformKey,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	stopMonitor()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
