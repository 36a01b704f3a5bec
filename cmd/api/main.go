package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cardforge/internal/agents"
	"cardforge/internal/engine"
	"cardforge/internal/http/handlers"
	httpapi "cardforge/internal/http/httpapi"
	"cardforge/internal/infra"
	"cardforge/internal/jobs"
	"cardforge/internal/providers/genai"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Job store: durable when a database is configured, in-memory otherwise.
	var store jobs.Store = jobs.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		pgStore := jobs.NewPostgresStore(infra.NewSQLRunner(dbpool, logger))
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure jobs schema")
		}
		store = pgStore
		logger.Info().Msg("using postgres job store")
	} else {
		logger.Info().Msg("no DATABASE_URL, using in-memory job store")
	}

	gen, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generator")
	}
	if gen.Keyless() {
		logger.Warn().Msg("no GEMINI_API_KEY, generator running in synthetic mode")
	}

	adapter := agents.NewAdapter(gen, logger, agents.AdapterOptions{
		MaxAttempts: cfg.AgentMaxAttempts,
		Timeout:     cfg.AgentTimeout,
	})
	eng := engine.New(adapter, logger, engine.Options{MaxFeedbackRounds: cfg.FeedbackRounds})
	manager := jobs.NewManager(store, eng, logger)

	app := handlers.NewApp(manager, logger)
	router := httpapi.NewRouter(app, cfg)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
