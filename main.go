package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"stock-scenario-engine/config"
	"stock-scenario-engine/internal/api"
	"stock-scenario-engine/internal/auth"
	"stock-scenario-engine/internal/cache"
	"stock-scenario-engine/internal/database"
	"stock-scenario-engine/internal/fusion"
	"stock-scenario-engine/internal/macro"
	"stock-scenario-engine/internal/market"
	"stock-scenario-engine/internal/providers"
	"stock-scenario-engine/internal/scenario"
	"stock-scenario-engine/internal/sentiment"
	"stock-scenario-engine/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Msg("Configuration loaded")

	ctx := context.Background()

	// Postgres is the system of record; fall back to the in-memory store
	// when it is unreachable so the engine still serves live scenarios.
	var (
		repo  *database.Repository
		store scenario.Store
	)
	db, err := database.NewDB(cfg.DatabaseConfig, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Database unavailable, using in-memory store")
		store = scenario.NewMemoryStore()
	} else {
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Database migrations failed")
		}
		repo = database.NewRepository(db)
		store = repo
		logger.Info().Msg("Database connected and migrated")
	}

	var cacheSvc *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheSvc, err = cache.NewCacheService(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis cache disabled")
			cacheSvc = nil
		}
	}

	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Warn().Err(err).Msg("Vault unavailable, provider credentials limited to config")
		vaultClient = nil
	}

	prices, news, mood, baskets, keywords := buildProviders(cfg, logger)

	keywordSvc := sentiment.NewKeywordService(keywords, logger)
	analyzer := sentiment.NewAnalyzer(keywordSvc, logger)
	fearGreed := macro.NewFearGreedService(mood, logger)
	basketSvc := macro.NewBasketService(baskets, cfg.MacroConfig.InfluenceScale, logger)

	engine, err := fusion.NewEngine(fusion.DefaultWeights(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid fusion weights")
	}

	generator := scenario.NewGenerator(scenario.Deps{
		Prices:    prices,
		News:      news,
		Analyzer:  analyzer,
		FearGreed: fearGreed,
		Baskets:   basketSvc,
		Engine:    engine,
		Store:     store,
		Classes:   cfg.SentimentConfig.StockClasses,
		Redis:     cacheSvc,
	}, logger)

	var authService *auth.Service
	if cfg.AuthConfig.Enabled {
		if repo == nil {
			logger.Warn().Msg("Auth requires the database, running without authentication")
		} else {
			authService = auth.NewService(repo, cfg.AuthConfig, logger)
			logger.Info().Msg("Authentication enabled")
		}
	}

	server := api.NewServer(cfg.ServerConfig, api.Deps{
		Generator:   generator,
		Store:       store,
		Repo:        repo,
		Keywords:    keywordSvc,
		Cache:       cacheSvc,
		Vault:       vaultClient,
		AuthService: authService,
	}, logger)

	refresher := scenario.NewRefresher(generator, scenario.RefresherConfig{
		Watchlist: cfg.ScenarioConfig.Watchlist,
		Interval:  time.Duration(cfg.ScenarioConfig.RefreshInterval) * time.Second,
		Workers:   cfg.ScenarioConfig.WorkerCount,
	}, server.Hub().BroadcastScenarioSet, logger)
	refresher.Start()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	refresher.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}

	if cacheSvc != nil {
		if err := cacheSvc.Close(); err != nil {
			logger.Error().Err(err).Msg("Cache close error")
		}
	}

	logger.Info().Msg("Shutdown complete")
}

// buildProviders wires the five market-data interfaces, either against the
// live HTTP feeds or the deterministic mock when mock mode is on.
func buildProviders(cfg *config.Config, logger zerolog.Logger) (
	market.PriceProvider,
	market.NewsProvider,
	market.MoodProvider,
	market.BasketProvider,
	market.KeywordProvider,
) {
	if cfg.MarketDataConfig.MockMode {
		logger.Warn().Msg("Mock mode enabled, all market data is simulated")
		mock := providers.NewMockProvider()
		return mock, mock, mock, mock, mock
	}

	timeout := time.Duration(cfg.MarketDataConfig.RequestTimeout) * time.Second

	prices := providers.NewPriceClient(cfg.MarketDataConfig, logger)
	news := providers.NewNewsClient(cfg.NewsConfig, logger)
	mood := providers.NewMoodClient(cfg.MacroConfig, timeout, logger)
	baskets := providers.NewBasketClient(prices, logger)

	var keywords market.KeywordProvider
	if cfg.SentimentConfig.KeywordSourceURL != "" {
		keywords = providers.NewKeywordClient(cfg.SentimentConfig.KeywordSourceURL, timeout, logger)
	}

	return prices, news, mood, baskets, keywords
}

// newLogger builds the root zerolog logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out *os.File
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			out = os.Stdout
		} else {
			out = f
		}
	}

	var logger zerolog.Logger
	if cfg.JSONFormat {
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	ctx := logger.Level(level).With().Timestamp()
	if cfg.IncludeFile {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}
