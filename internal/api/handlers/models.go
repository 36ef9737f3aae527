package handlers

import (
	"net/http"

	"github.com/Conceptual-Machines/blessing-api/internal/credentials"
	"github.com/gin-gonic/gin"
)

type ModelsHandler struct {
	resolver     *credentials.Resolver
	defaultModel string
}

func NewModelsHandler(resolver *credentials.Resolver, defaultModel string) *ModelsHandler {
	return &ModelsHandler{resolver: resolver, defaultModel: defaultModel}
}

// ListModels handles GET /api/models. Keys and base URLs are never exposed.
func (h *ModelsHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":        h.resolver.Pool().AvailableModels(),
		"default_model": h.defaultModel,
		"policy":        h.resolver.Policy(),
	})
}
