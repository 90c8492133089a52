// Package main is the entrypoint for the GitLite server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gitlite/gitlite/internal/api"
	"github.com/gitlite/gitlite/internal/auth"
	"github.com/gitlite/gitlite/internal/config"
	"github.com/gitlite/gitlite/internal/db"
	"github.com/gitlite/gitlite/internal/integrity"
	"github.com/gitlite/gitlite/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
		return 1
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
		return 1
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting GitLite server")

	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
		return 1
	}

	oidc, err := auth.NewOIDC(ctx, auth.OIDCConfig{
		Issuer:   cfg.OIDCIssuer,
		ClientID: cfg.OIDCClientID,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize OIDC provider")
		return 1
	}

	collector := metrics.NewCollector(database, logger)

	allowedOrigins := strings.Split(os.Getenv("CORS_ORIGINS"), ",")
	if os.Getenv("CORS_ORIGINS") == "" {
		allowedOrigins = []string{}
	}

	router, err := api.NewRouter(api.Config{
		Environment:     cfg.Environment,
		AllowedOrigins:  allowedOrigins,
		RateLimit:       cfg.RateLimit,
		MaxContentBytes: cfg.MaxContentBytes,
		ActivityLimit:   cfg.ActivityLimit,
		Version:         Version,
		Commit:          Commit,
		BuildDate:       BuildDate,
	}, database, oidc, collector, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Start the nightly integrity sweep
	sweeper := integrity.NewScheduler(database, collector, cfg.IntegritySchedule, logger)
	if err := sweeper.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start integrity sweep scheduler")
	}
	defer sweeper.Stop()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return 1
	}

	logger.Info().Msg("Server stopped gracefully")
	return 0
}
