package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/api"
	apimiddleware "github.com/Conceptual-Machines/blessing-api/internal/api/middleware"
	"github.com/Conceptual-Machines/blessing-api/internal/config"
	"github.com/Conceptual-Machines/blessing-api/internal/generation"
	"github.com/Conceptual-Machines/blessing-api/internal/metrics"
	"github.com/Conceptual-Machines/blessing-api/internal/observability"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	shutdownTimeout       = 10 * time.Second
	environmentProduction = "production"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "blessing-api@" + releaseVersion,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
			Debug:            cfg.Environment != environmentProduction,
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				// Provider keys travel in headers and must never leave the process
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
					event.Request.Data = ""
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Round observers: Langfuse traces plus Sentry and CloudWatch metrics
	tracer := observability.NewRoundTracer(observability.InitializeLangfuse(ctx, cfg))
	cloudwatch, err := metrics.NewClient(ctx, cfg.Environment, cfg.CloudWatchEnabled)
	if err != nil {
		log.Printf("⚠️  CloudWatch metrics unavailable: %v", err)
	}
	recorders := []metrics.Recorder{metrics.NewSentryMetrics()}
	var apiRecorders []apimiddleware.APIRecorder
	if cloudwatch != nil && cloudwatch.Enabled() {
		recorders = append(recorders, cloudwatch)
		apiRecorders = append(apiRecorders, cloudwatch)
	}

	stack, err := generation.NewStack(cfg, os.LookupEnv, tracer.Listener(), metrics.RoundListener(recorders...))
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to initialize generation stack:", err)
	}
	log.Printf("📚 Corpus loaded: %d entries, %d server models (policy: %s)",
		stack.Corpus.Size(), stack.Resolver.Pool().Len(), stack.Resolver.Policy())

	registry := generation.NewRegistry(
		func() *generation.Orchestrator { return stack.NewOrchestrator() },
		generation.WithMaxSessions(cfg.MaxSessions),
	)
	api.StartSessionJanitor(ctx, cfg, registry)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.SetupRouter(ctx, cfg, GetVersion(), stack, registry, apiRecorders...)

	// No write timeout: responses are long-lived event streams
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.CaptureException(err)
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Graceful shutdown failed: %v", err)
	}
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization":   true,
		"cookie":          true,
		"x-api-key":       true,
		"x-user-api-key":  true,
		"x-user-base-url": true,
	}

	for k, v := range headers {
		if sensitiveKeys[strings.ToLower(k)] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
