package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/config"
	"github.com/Conceptual-Machines/blessing-api/internal/generation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		CredentialPolicy:       config.PolicyModel,
		StreamIdleTimeout:      time.Second,
		UpstreamConnectTimeout: time.Second,
		CORSAllowedOrigins:     []string{"*"},
		SessionIdleTTL:         time.Minute,
	}
	lookup := func(key string) (string, bool) {
		if key == "DEEPSEEK_API_KEY" {
			return "sk-test", true
		}
		return "", false
	}
	stack, err := generation.NewStack(cfg, lookup)
	require.NoError(t, err)
	registry := generation.NewRegistry(func() *generation.Orchestrator { return stack.NewOrchestrator() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	StartSessionJanitor(ctx, cfg, registry)

	return SetupRouter(ctx, cfg, "test", stack, registry)
}

func TestRouterRoutes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/metrics", http.StatusOK},
		{http.MethodGet, "/api/models", http.StatusOK},
		{http.MethodGet, "/api/sessions/missing", http.StatusNotFound},
		{http.MethodDelete, "/api/sessions/missing/rounds", http.StatusNotFound},
		{http.MethodOptions, "/api/rounds", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Origin", "https://example.com")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRouterMetricsReportsVersion(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Version string `json:"version"`
		API     struct {
			Sessions         int    `json:"sessions"`
			Models           int    `json:"models"`
			CredentialPolicy string `json:"credential_policy"`
		} `json:"api"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 1, resp.API.Models)
	assert.Equal(t, "model", resp.API.CredentialPolicy)
}
