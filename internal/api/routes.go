// Package api provides the HTTP API for the GitLite server.
package api

import (
	"github.com/gitlite/gitlite/internal/api/handlers"
	"github.com/gitlite/gitlite/internal/api/middleware"
	"github.com/gitlite/gitlite/internal/auth"
	"github.com/gitlite/gitlite/internal/config"
	"github.com/gitlite/gitlite/internal/db"
	"github.com/gitlite/gitlite/internal/health"
	"github.com/gitlite/gitlite/internal/metrics"
	"github.com/gitlite/gitlite/internal/vcs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Config holds configuration for the API router.
type Config struct {
	// Environment controls CORS strictness and gin mode.
	Environment config.Environment
	// AllowedOrigins for CORS. Empty means all origins allowed in dev mode.
	AllowedOrigins []string
	// RateLimit in limiter notation, e.g. "300-M" for 300 requests per minute.
	RateLimit string
	// MaxContentBytes caps request body size.
	MaxContentBytes int64
	// ActivityLimit is the default page size for repository activity.
	ActivityLimit int
	// Version information for the version endpoint.
	Version   string
	Commit    string
	BuildDate string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		Environment:     config.EnvDevelopment,
		AllowedOrigins:  []string{},
		RateLimit:       "300-M",
		MaxContentBytes: 10 << 20,
		ActivityLimit:   20,
		Version:         "dev",
		Commit:          "unknown",
		BuildDate:       "unknown",
	}
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
	db     *db.DB
}

// NewRouter creates a new Router with the given dependencies. The collector
// may be nil to disable the metrics endpoint.
func NewRouter(
	cfg Config,
	database *db.DB,
	oidc *auth.OIDC,
	collector *metrics.Collector,
	logger zerolog.Logger,
) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
		db:     database,
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Environment))
	r.Engine.Use(middleware.BodyLimit(cfg.MaxContentBytes))

	// Rate limiting
	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	// Health check endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(database, health.NewCollector(), logger)
	healthHandler.RegisterPublicRoutes(r.Engine)

	// Prometheus metrics endpoint (no auth required)
	if collector != nil {
		r.Engine.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	// Version endpoint (no auth required)
	versionHandler := handlers.NewVersionHandler(cfg.Version, cfg.Commit, cfg.BuildDate, logger)
	versionHandler.RegisterPublicRoutes(r.Engine)

	// Auth routes (no auth required)
	authHandler := handlers.NewAuthHandler(oidc, logger)
	authHandler.RegisterRoutes(r.Engine.Group("/auth"))

	// API v1 routes (bearer token required)
	apiV1 := r.Engine.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(oidc, logger))

	authHandler.RegisterAPIRoutes(apiV1)

	chain := vcs.NewChain(database, logger)
	recon := vcs.NewReconstructor(database, logger)

	reposHandler := handlers.NewRepositoriesHandler(database, recon, cfg.ActivityLimit, logger)
	reposHandler.RegisterRoutes(apiV1)

	filesHandler := handlers.NewFilesHandler(chain, database, collector, logger)
	filesHandler.RegisterRoutes(apiV1)

	versionsHandler := handlers.NewVersionsHandler(chain, database, collector, logger)
	versionsHandler.RegisterRoutes(apiV1)

	r.logger.Info().Msg("API router initialized")
	return r, nil
}
