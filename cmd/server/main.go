package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/billing"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/billing/mock"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/cache"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/handler"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/jobs"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/metrics"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/middleware"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/migrations"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/repository"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/service"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/storage"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/subscriptionapi"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	repo := repository.New(db)

	// Tier table: published document if present, built-in defaults otherwise
	store, err := storage.New(cfg.StorageProvider, storage.LocalConfig{
		BasePath: cfg.LocalStoragePath,
	}, storage.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		Endpoint:        cfg.R2Endpoint,
	}, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	table, err := storage.LoadTierTable(ctx, store, cfg.TierDocumentKey)
	switch {
	case storage.IsNotFound(err):
		table = pricing.DefaultTierTable()
		logger.Info("No published tier document, using defaults", "key", cfg.TierDocumentKey)
	case err != nil:
		return fmt.Errorf("tier table load failed: %w", err)
	}
	logger.Info("Tier table loaded",
		"version", table.Version(),
		"tiers", table.Len(),
		"currency", table.Currency(),
	)

	// Quote cache
	quoteCache, cacheCheck, closeCache, err := newQuoteCache(cfg)
	if err != nil {
		return fmt.Errorf("cache initialization failed: %w", err)
	}
	defer closeCache()

	// Record store client
	records, err := subscriptionapi.New(subscriptionapi.Config{
		BaseURL:        cfg.RecordStoreURL,
		MaxRetries:     cfg.RecordStoreMaxRetries,
		RetryBaseDelay: cfg.RecordStoreRetryDelay,
		RequestTimeout: cfg.RecordStoreTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("record store client initialization failed: %w", err)
	}

	// Billing provider
	var billingService billing.Service
	if cfg.UseMockBilling() {
		if cfg.IsProduction() {
			logger.Warn("STRIPE_SECRET_KEY not set in production, billing calls go to the mock provider")
		}
		billingService = mock.New(logger)
	} else {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	}

	// Initialize services
	pricingService := service.NewPricingService(table, quoteCache, service.PricingConfig{
		MaxAssetCount: cfg.MaxAssetCount,
	}, logger)
	adjustments := service.NewAdjustmentStore(db, repo, logger)
	subscriptionService := service.NewSubscriptionService(
		records,
		pricingService,
		adjustments,
		billingService,
		service.CheckoutConfig{
			ProductName: cfg.CheckoutProductName,
			SuccessURL:  cfg.CheckoutSuccessURL,
			CancelURL:   cfg.CheckoutCancelURL,
		},
		logger,
	)

	// Background worker
	var w *worker.Worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.MaxBatch = cfg.WorkerMaxBatch
		workerCfg.JobTimeout = cfg.WorkerJobTimeout
		workerCfg.ShutdownTimeout = cfg.WorkerShutdownTimeout

		w, err = worker.New(db, repo, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Register(jobs.NewApplyAdjustmentHandler(adjustments, billingService, logger))
	} else {
		logger.Warn("Worker disabled, billing adjustments will stay pending")
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	sessionMw := middleware.NewSessionMiddleware(cfg.SessionCookieName, logger)
	csrfMw := middleware.NewCSRFMiddleware(isSecure, logger)
	var limiter middleware.Limiter
	if rc, ok := quoteCache.(*cache.RedisCache); ok {
		limiter = middleware.NewRedisRateLimiter(rc.Client(), rc.Namespace(), cfg.RateLimitRequests, cfg.RateLimitWindow)
	} else {
		local := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, logger)
		defer local.Close()
		limiter = local
	}
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	if !metricsAuth.Enabled() {
		logger.Warn("METRICS_USERNAME/METRICS_PASSWORD not set, /metrics is unprotected")
	}

	// Initialize handlers
	pricingHandler := handler.NewPricingHandler(pricingService, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, table.Currency(), logger)
	webhookHandler := handler.NewWebhookHandler(billingService, subscriptionService, logger)

	checks := map[string]handler.HealthCheck{
		"database": db.PingContext,
	}
	if cacheCheck != nil {
		checks["cache"] = cacheCheck
	}
	healthHandler := handler.NewHealthHandler(checks, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	healthHandler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	pricingHandler.RegisterRoutes(mux, rateLimitMw.Limit)

	requireSession := middleware.Stack(sessionMw.WithSession, sessionMw.RequireSession, csrfMw.Protect)
	subscriptionHandler.RegisterRoutes(mux, requireSession)

	webhookHandler.RegisterRoutes(mux)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	requestLogger := middleware.NewRequestLoggingMiddleware(logger)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isSecure)
	root := metrics.Middleware(requestLogger.Handler(securityHeaders.Handler(mux)))

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if w != nil {
		w.Start(workerCtx)
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	return serve(server, sigChan, 30*time.Second, logger, func() {
		if w != nil {
			w.Stop()
		}
	})
}

// serve runs server until a signal arrives or the listener fails, then shuts
// it down and calls cleanup. A listener failure is returned after cleanup so
// the process exits non-zero.
func serve(server *http.Server, signals <-chan os.Signal, shutdownTimeout time.Duration, logger *slog.Logger, cleanup func()) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("Server started", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var listenErr error
	select {
	case <-signals:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case listenErr = <-serverErr:
		logger.Error("Server failed", "error", listenErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if cleanup != nil {
		cleanup()
	}

	if listenErr != nil {
		return fmt.Errorf("server failed: %w", listenErr)
	}
	logger.Info("Graceful shutdown complete")
	return nil
}

// newQuoteCache builds the configured quote cache. The returned health check
// is nil for providers with nothing to ping.
func newQuoteCache(cfg *internal.Config) (cache.QuoteCache, handler.HealthCheck, func(), error) {
	switch cfg.CacheProvider {
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addrs:      cfg.RedisAddrs,
			Password:   cfg.RedisPassword,
			UseCluster: cfg.RedisCluster,
			Namespace:  cfg.RedisNamespace,
			TTL:        cfg.CacheTTL,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return rc, rc.Ping, func() { _ = rc.Close() }, nil
	case "none":
		return cache.Noop{}, nil, func() {}, nil
	default:
		return cache.NewMemoryCache(cfg.CacheMemoryItems), nil, func() {}, nil
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
