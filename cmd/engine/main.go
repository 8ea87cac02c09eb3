package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/devstory-labs/devstory-engine/internal/config"
	"github.com/devstory-labs/devstory-engine/internal/genai"
	"github.com/devstory-labs/devstory-engine/internal/health"
	"github.com/devstory-labs/devstory-engine/internal/metrics"
	"github.com/devstory-labs/devstory-engine/internal/orchestrator"
	"github.com/devstory-labs/devstory-engine/internal/reward"
	"github.com/devstory-labs/devstory-engine/internal/server"
	"github.com/devstory-labs/devstory-engine/internal/store"
	"github.com/devstory-labs/devstory-engine/internal/team"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("http_addr", cfg.HTTPAddr).
		Str("metrics_addr", cfg.MetricsAddr).
		Str("model", cfg.GeminiModel).
		Bool("rewards_enabled", cfg.RewardEnabled()).
		Msg("starting devstory engine")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Document store
	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open document store")
	}
	defer st.Close()

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := st.Ping(); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// Generative provider
	if !cfg.GeminiEnabled() {
		logger.Fatal().Msg("GEMINI_API_KEY is required")
	}
	provider := genai.NewGeminiProvider(cfg.GeminiAPIKey,
		genai.WithModel(cfg.GeminiModel),
		genai.WithMaxTokens(cfg.GeminiMaxTokens),
		genai.WithLogger(logger),
	)
	checker.Register("gemini", func(ctx context.Context) health.Status {
		// No probe endpoint; configured means serving.
		return health.StatusOK
	})

	// Reward ledger (optional)
	var ledger reward.Ledger = reward.NoopLedger{}
	if cfg.RewardEnabled() {
		ledger = reward.NewWebhookLedger(cfg.RewardEndpoint, cfg.RewardAPIKey, logger)
		logger.Info().Str("endpoint", cfg.RewardEndpoint).Msg("reward webhook enabled")
	} else {
		logger.Info().Msg("rewards not configured — awards are no-ops")
	}

	// Metrics
	m := metrics.New()

	// Roster service
	cacheTTL, err := time.ParseDuration(cfg.MemberCacheTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid MEMBER_CACHE_TTL")
	}
	roster := team.NewService(st, logger, team.WithCache(cfg.MemberCacheSize, cacheTTL))

	// Orchestrator
	orch := orchestrator.New(st, provider, ledger, m, logger)

	// HTTP API
	apiServer := server.NewServer(server.Config{
		ListenAddr:  cfg.HTTPAddr,
		CORSOrigins: cfg.CORSOrigins,
	}, orch, roster, st, checker, m, logger)

	// Metrics endpoint on its own listener
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsServer := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server starting")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
	}

	// Let in-flight pipelines finalize their records
	if err := orch.Drain(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown with pipelines still in flight")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("devstory engine stopped")
}
