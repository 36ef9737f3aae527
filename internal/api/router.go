package api

import (
	"context"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/blessing-api/internal/api/middleware"
	"github.com/Conceptual-Machines/blessing-api/internal/config"
	"github.com/Conceptual-Machines/blessing-api/internal/generation"
	"github.com/gin-gonic/gin"
)

// SetupRouter wires every route. ctx bounds session rounds, which outlive
// the request that started them.
func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	version string,
	stack *generation.Stack,
	registry *generation.Registry,
	recorders ...apimiddleware.APIRecorder,
) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(recorders...))

	// CORS middleware
	router.Use(apimiddleware.CORS(cfg.CORSAllowedOrigins))

	// Health check
	healthHandler := handlers.NewHealthHandler(stack.Corpus, stack.Resolver.Pool())
	router.GET("/health", healthHandler.HealthCheck)

	apiRoutes := router.Group("/api")
	apiRoutes.Use(apimiddleware.UserCredentials())
	{
		metricsHandler := handlers.NewMetricsHandler(version, registry, stack.Resolver)
		apiRoutes.GET("/metrics", metricsHandler.GetMetrics)

		modelsHandler := handlers.NewModelsHandler(stack.Resolver, cfg.DefaultModel)
		apiRoutes.GET("/models", modelsHandler.ListModels)

		// Single variant, relayed as-is
		generationHandler := handlers.NewGenerationHandler(
			stack.Resolver, cfg.DefaultModel, stack.Selector, stack.Prompts, stack.Relay, stack.Listeners()...,
		)
		apiRoutes.POST("/generate", generationHandler.Generate)

		// Three variants per round
		roundsHandler := handlers.NewRoundsHandler(ctx, stack.Resolver, cfg.DefaultModel, stack.NewOrchestrator, registry)
		apiRoutes.POST("/rounds", roundsHandler.StreamRound)

		sessions := apiRoutes.Group("/sessions/:id")
		sessions.GET("", roundsHandler.GetSession)
		sessions.DELETE("", roundsHandler.DeleteSession)
		sessions.POST("/rounds", roundsHandler.StartSessionRound)
		sessions.DELETE("/rounds", roundsHandler.CancelSessionRound)
	}

	return router
}

// sessionSweepInterval is how often idle sessions are looked for
const sessionSweepInterval = time.Minute

// StartSessionJanitor forgets idle sessions until ctx ends
func StartSessionJanitor(ctx context.Context, cfg *config.Config, registry *generation.Registry) {
	go registry.Run(ctx, sessionSweepInterval, cfg.SessionIdleTTL)
}
