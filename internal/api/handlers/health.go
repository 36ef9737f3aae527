package handlers

import (
	"net/http"

	"github.com/Conceptual-Machines/blessing-api/internal/corpus"
	"github.com/Conceptual-Machines/blessing-api/internal/credentials"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	corpus *corpus.Corpus
	pool   *credentials.Pool
}

func NewHealthHandler(c *corpus.Corpus, pool *credentials.Pool) *HealthHandler {
	return &HealthHandler{corpus: c, pool: pool}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"corpus": gin.H{
			"entries":       h.corpus.Size(),
			"relationships": h.corpus.Relationships(),
		},
		"models": h.pool.Len(),
	})
}
