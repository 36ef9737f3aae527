package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
// Everything is read from the environment once at startup; nothing is persisted.
type Config struct {
	// Environment
	Environment string
	Port        string

	// Credential resolution
	// - "model": server pool lookup by model id (default)
	// - "random": pick any available server provider when no model is given
	CredentialPolicy string
	DefaultModel     string

	// Upstream streaming
	StreamIdleTimeout      time.Duration // abort when upstream sends nothing for this long
	UpstreamConnectTimeout time.Duration // dial + TLS + response headers

	// HTTP
	CORSAllowedOrigins []string
	SessionIdleTTL     time.Duration // in-memory round sessions are forgotten after this
	MaxSessions        int           // new sessions are refused past this many

	// Observability
	SentryDSN         string // Sentry DSN for error tracking
	LangfusePublicKey string // Langfuse public key
	LangfuseSecretKey string // Langfuse secret key
	LangfuseHost      string // Langfuse host URL (cloud or self-hosted)
	LangfuseEnabled   bool   // Feature flag for Langfuse
	CloudWatchEnabled bool   // Only honored in production
}

const (
	PolicyModel  = "model"
	PolicyRandom = "random"
)

func Load() *Config {
	return &Config{
		Environment:            getEnv("ENVIRONMENT", "development"),
		Port:                   getEnv("PORT", "8080"),
		CredentialPolicy:       getEnv("CREDENTIAL_POLICY", PolicyModel),
		DefaultModel:           getEnv("DEFAULT_MODEL", ""),
		StreamIdleTimeout:      getDuration("STREAM_IDLE_TIMEOUT", 30*time.Second),
		UpstreamConnectTimeout: getDuration("UPSTREAM_CONNECT_TIMEOUT", 15*time.Second),
		CORSAllowedOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		SessionIdleTTL:         getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		MaxSessions:            getInt("MAX_SESSIONS", 1000),
		SentryDSN:              getEnv("SENTRY_DSN", ""),
		LangfusePublicKey:      getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey:      getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:           getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		LangfuseEnabled:        getEnv("LANGFUSE_ENABLED", "false") == "true",
		CloudWatchEnabled:      getEnv("CLOUDWATCH_ENABLED", "false") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsRandomPolicy returns true when requests without a model may use any server provider
func (c *Config) IsRandomPolicy() bool {
	return c.CredentialPolicy == PolicyRandom
}
