package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFormatFieldsSortedAndRedacted(t *testing.T) {
	got := formatFields(Fields{
		"variant":  "normal",
		"api_key":  "sk-live-secret",
		"tokens":   12,
		"duration": 1.5,
	})

	assert.Equal(t, "{api_key=[REDACTED], duration=1.50, tokens=12, variant=normal}", got)
	assert.Empty(t, formatFields(nil))
}

func TestConvertFieldsToMapRedacts(t *testing.T) {
	m := convertFieldsToMap(Fields{"Authorization": "Bearer x", "model": "m"})

	assert.Equal(t, redacted, m["Authorization"])
	assert.Equal(t, "m", m["model"])
}

func TestWithContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	var fields Fields
	router.GET("/api/sessions/:id", func(c *gin.Context) {
		c.Set("request_id", "req-1")
		c.Set("credential_source", "server")
		fields = WithContext(c)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil))

	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "abc", fields["session_id"])
	assert.Equal(t, "server", fields["credential_source"])
	assert.Equal(t, "/api/sessions/abc", fields["path"])
}
