package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Conceptual-Machines/blessing-api/internal/api/middleware"
	"github.com/Conceptual-Machines/blessing-api/internal/credentials"
	"github.com/Conceptual-Machines/blessing-api/internal/logger"
	"github.com/Conceptual-Machines/blessing-api/internal/models"
	"github.com/gin-gonic/gin"
)

// BlessingRequest is the JSON body accepted by the generation endpoints.
// Style is required for /api/generate and ignored for rounds.
type BlessingRequest struct {
	Model        string `json:"model"`
	Relationship string `json:"relationship"`
	Style        string `json:"style"`
	Length       string `json:"length"`
	Name         string `json:"name"`
	Note         string `json:"note"`
	Reference    string `json:"reference"`

	// Bring-your-own provider; used only when all three are set
	UserAPIKey  string `json:"userApiKey"`
	UserBaseURL string `json:"userBaseUrl"`
	UserModel   string `json:"userModel"`
}

// parsedRequest is a validated request with the credentials that will serve it
type parsedRequest struct {
	request  models.GenerationRequest
	explicit *models.Credentials
	modelID  string
	creds    models.Credentials
}

// requestParser validates bodies before any upstream call is made
type requestParser struct {
	resolver     *credentials.Resolver
	defaultModel string
}

// parse binds and validates the body. On failure it writes a 400 and returns false.
func (p *requestParser) parse(c *gin.Context, requireStyle bool) (*parsedRequest, bool) {
	var body BlessingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("请求格式错误: %v", err)})
		return nil, false
	}

	style := body.Style
	if !requireStyle {
		style = string(models.Styles[0])
	}
	req, err := models.NewGenerationRequest(body.Relationship, style, body.Length, body.Name, body.Note, body.Reference)
	if err != nil {
		logger.Warn("Request rejected", mergeFields(logger.WithContext(c), logger.Fields{"reason": err.Error()}))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	explicit := explicitCredentials(c, body)
	modelID := strings.TrimSpace(body.Model)
	if modelID == "" {
		modelID = p.defaultModel
	}

	creds, err := p.resolver.Resolve(explicit, modelID)
	if err != nil {
		logger.Warn("No credentials for request", mergeFields(logger.WithContext(c), logger.Fields{"model": modelID}))
		c.JSON(http.StatusBadRequest, gin.H{"error": credentialErrorMessage(err, modelID)})
		return nil, false
	}
	middleware.SetCredentialSource(c, creds.Source)
	logger.Debug("Credentials resolved", logger.Fields{
		"request_id": c.GetString("request_id"),
		"source":     string(creds.Source),
		"model":      creds.ModelID,
	})

	return &parsedRequest{
		request:  req,
		explicit: explicit,
		modelID:  modelID,
		creds:    creds,
	}, true
}

// explicitCredentials prefers body fields over headers; the two are never mixed
func explicitCredentials(c *gin.Context, body BlessingRequest) *models.Credentials {
	fromBody := models.Credentials{
		APIKey:  strings.TrimSpace(body.UserAPIKey),
		BaseURL: strings.TrimSpace(body.UserBaseURL),
		ModelID: strings.TrimSpace(body.UserModel),
		Source:  models.SourceUser,
	}
	if fromBody.APIKey != "" || fromBody.BaseURL != "" || fromBody.ModelID != "" {
		return &fromBody
	}
	if fromHeaders, ok := middleware.GetUserCredentials(c); ok {
		return fromHeaders
	}
	return nil
}

func credentialErrorMessage(err error, modelID string) string {
	if !errors.Is(err, credentials.ErrNoCredentials) {
		return err.Error()
	}
	if modelID != "" {
		return fmt.Sprintf("模型不可用: %s", modelID)
	}
	return "缺少必要参数: model（或提供完整的 userApiKey、userBaseUrl、userModel）"
}

func mergeFields(base, extra logger.Fields) logger.Fields {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
