package middleware

import (
	"strings"

	"github.com/Conceptual-Machines/blessing-api/internal/models"
	"github.com/gin-gonic/gin"
)

// Headers a client may use instead of body fields to bring its own provider
const (
	HeaderUserAPIKey  = "X-User-Api-Key"
	HeaderUserBaseURL = "X-User-Base-Url"
	HeaderUserModel   = "X-User-Model"
)

const (
	userCredentialsKey  = "user_credentials"
	credentialSourceKey = "credential_source"
)

// UserCredentials reads a client-supplied provider from request headers.
// Incomplete triples are kept so the handler can decide; they are never
// merged with server-side values.
//
// The key is only stored in the request context, never logged.
func UserCredentials() gin.HandlerFunc {
	return func(c *gin.Context) {
		creds := models.Credentials{
			APIKey:  strings.TrimSpace(c.GetHeader(HeaderUserAPIKey)),
			BaseURL: strings.TrimSpace(c.GetHeader(HeaderUserBaseURL)),
			ModelID: strings.TrimSpace(c.GetHeader(HeaderUserModel)),
			Source:  models.SourceUser,
		}

		if creds.APIKey != "" || creds.BaseURL != "" || creds.ModelID != "" {
			c.Set(userCredentialsKey, &creds)
		}

		c.Next()
	}
}

// GetUserCredentials retrieves credentials captured from headers
// Returns the credentials and a boolean indicating if any header was present
func GetUserCredentials(c *gin.Context) (*models.Credentials, bool) {
	v, exists := c.Get(userCredentialsKey)
	if !exists {
		return nil, false
	}
	creds, ok := v.(*models.Credentials)
	return creds, ok
}

// SetCredentialSource records which source served the request, for logs and Sentry
func SetCredentialSource(c *gin.Context, source models.CredentialSource) {
	c.Set(credentialSourceKey, string(source))
}
