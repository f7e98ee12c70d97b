package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/access-ledger-bfa-go/internal/config"
	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/access-ledger-bfa-go/internal/handler"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/cache"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/redisstore"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/access-ledger-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	location, _ := cfg.Location()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("timezone", location.String()),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("referral_reward", cfg.ReferralReward.StringFixed(2)),
		zap.String("plan_catalog_file", cfg.PlanCatalogFile),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "access-ledger-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Plan catalog ---
	catalog, err := config.LoadPlanCatalog(cfg.PlanCatalogFile)
	if err != nil {
		logger.Fatal("invalid plan catalog", zap.Error(err))
	}

	// --- Cache ---
	accountCache := cache.New[*domain.AccessAccount](cfg.CacheSize, cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	// Callers hanging up must not trip the breaker.
	cb := resilience.NewCircuitBreaker("supabase", func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	})

	// --- Data source ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	supabaseClient := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)
	logger.Info("using Supabase as ledger source", zap.String("supabase_url", cfg.SupabaseURL))

	// --- Referral store ---
	redisClient, err := redisstore.Connect(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis unavailable", zap.Error(err))
	}
	defer redisClient.Close()
	referralStore := redisstore.NewReferralStore(redisClient, cfg.RedisPrefix, logger)

	// --- Services ---
	accessSvc := service.NewAccessService(
		supabaseClient,
		catalog,
		accountCache,
		time.Now,
		location,
		cfg.UpcomingLimit,
		metrics,
		logger,
	)
	planSvc := service.NewPlanService(catalog)
	referralSvc := service.NewReferralService(referralStore, cfg.ReferralReward, time.Now, metrics, logger)

	verifier, err := service.NewWebhookVerifier(cfg.WebhookSecret, time.Now)
	if err != nil {
		logger.Fatal("invalid webhook configuration", zap.Error(err))
	}

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Access:   accessSvc,
		Plans:    planSvc,
		Referral: referralSvc,
		Webhook:  verifier,
		Health: map[string]handler.Pinger{
			"supabase": supabaseClient,
			"redis":    referralStore,
		},
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
