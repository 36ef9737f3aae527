package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/credentials"
	"github.com/Conceptual-Machines/blessing-api/internal/generation"
	"github.com/Conceptual-Machines/blessing-api/internal/logger"
	"github.com/Conceptual-Machines/blessing-api/internal/metrics"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

const roundEventBuffer = 64

var roundMetrics = metrics.NewSentryMetrics()

// OrchestratorFactory builds an orchestrator with the server-wide listeners plus extra options
type OrchestratorFactory func(opts ...generation.Option) *generation.Orchestrator

// RoundsHandler runs three-variant rounds, either streamed in one request
// or controlled through named in-memory sessions
type RoundsHandler struct {
	parser   *requestParser
	factory  OrchestratorFactory
	registry *generation.Registry
	baseCtx  context.Context // parent of session rounds, which outlive their request
}

func NewRoundsHandler(
	baseCtx context.Context,
	resolver *credentials.Resolver,
	defaultModel string,
	factory OrchestratorFactory,
	registry *generation.Registry,
) *RoundsHandler {
	return &RoundsHandler{
		parser:   &requestParser{resolver: resolver, defaultModel: defaultModel},
		factory:  factory,
		registry: registry,
		baseCtx:  baseCtx,
	}
}

// RoundResponse describes a round without streaming it
type RoundResponse struct {
	SessionID string                    `json:"session_id,omitempty"`
	RoundID   string                    `json:"round_id"`
	Status    generation.Status         `json:"status"`
	Variants  []generation.VariantState `json:"variants"`
}

func roundResponse(sessionID string, orch *generation.Orchestrator) RoundResponse {
	states := orch.Snapshot()
	return RoundResponse{
		SessionID: sessionID,
		RoundID:   orch.RoundID(),
		Status:    generation.Aggregate(states),
		Variants:  states,
	}
}

// StreamRound handles POST /api/rounds.
// Every variant's tokens are multiplexed onto one event stream; a client
// disconnect cancels the whole round.
func (h *RoundsHandler) StreamRound(c *gin.Context) {
	parsed, ok := h.parser.parse(c, false)
	if !ok {
		return
	}

	startTime := time.Now()
	ctx := c.Request.Context()
	events := make(chan generation.Event, roundEventBuffer)
	pipe := func(ev generation.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	orch := h.factory(generation.WithListener(pipe))
	roundID, err := orch.StartRound(ctx, generation.RoundInput{
		Request:  parsed.request,
		Explicit: parsed.explicit,
		ModelID:  parsed.modelID,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settled := make(chan struct{})
	go func() {
		_ = orch.Wait(ctx)
		close(settled)
	}()

	c.Header("X-Round-ID", roundID)
	sse := newSSEWriter(c)
	sse.start()
	c.Writer.Flush()

	for {
		select {
		case ev := <-events:
			writeRoundEvent(sse, ev)
		case <-settled:
			if ctx.Err() != nil {
				orch.CancelRound()
				logger.Info("Client disconnected during round", logger.Fields{
					"request_id": c.GetString("request_id"),
					"round_id":   roundID,
				})
				return
			}
			// Wait returns only after listeners ran, so everything is buffered
			for {
				select {
				case ev := <-events:
					writeRoundEvent(sse, ev)
				default:
					resp := roundResponse("", orch)
					_ = sse.send(gin.H{
						"status":   resp.Status,
						"round_id": resp.RoundID,
						"variants": resp.Variants,
					})
					_ = sse.done()
					logRound(c, resp, time.Since(startTime))
					return
				}
			}
		}
	}
}

func logRound(c *gin.Context, resp RoundResponse, duration time.Duration) {
	failed := 0
	for _, v := range resp.Variants {
		if v.Status == generation.StatusError {
			failed++
		}
	}

	fields := logger.Fields{
		"round_id":        resp.RoundID,
		"status":          string(resp.Status),
		"failed_variants": failed,
	}
	logger.LogAPIRequest(c, duration, http.StatusOK, fields)
	roundMetrics.RecordPerformanceMetric("round.stream", duration, map[string]interface{}{
		"round_id":        resp.RoundID,
		"failed_variants": failed,
	})
	if failed == len(resp.Variants) {
		logger.LogToSentry(sentry.LevelWarning, "Every variant in the round failed", logger.Fields{
			"request_id": c.GetString("request_id"),
			"round_id":   resp.RoundID,
		})
	}
}

func writeRoundEvent(sse *sseWriter, ev generation.Event) {
	variant := string(ev.Variant)
	switch ev.Type {
	case generation.EventToken:
		_ = sse.send(gin.H{"variant": variant, "token": ev.Token})
	case generation.EventDone:
		_ = sse.send(gin.H{"variant": variant, "status": generation.StatusDone})
	case generation.EventError:
		_ = sse.send(gin.H{"variant": variant, "status": generation.StatusError, "error": ev.Message})
	}
}

// StartSessionRound handles POST /api/sessions/:id/rounds
func (h *RoundsHandler) StartSessionRound(c *gin.Context) {
	parsed, ok := h.parser.parse(c, false)
	if !ok {
		return
	}

	sessionID := c.Param("id")
	orch, err := h.registry.Get(sessionID)
	if err != nil {
		logger.Warn("Session rejected", mergeFields(logger.WithContext(c), logger.Fields{
			"session_id": sessionID,
			"sessions":   h.registry.Len(),
		}))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "会话数量已达上限，请稍后重试"})
		return
	}
	if _, err := orch.StartRound(h.baseCtx, generation.RoundInput{
		Request:  parsed.request,
		Explicit: parsed.explicit,
		ModelID:  parsed.modelID,
	}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, roundResponse(sessionID, orch))
}

// CancelSessionRound handles DELETE /api/sessions/:id/rounds
func (h *RoundsHandler) CancelSessionRound(c *gin.Context) {
	sessionID := c.Param("id")
	orch, ok := h.registry.Lookup(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	orch.CancelRound()
	logger.Info("Round canceled", logger.WithContext(c))
	c.JSON(http.StatusOK, roundResponse(sessionID, orch))
}

// GetSession handles GET /api/sessions/:id
func (h *RoundsHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("id")
	orch, ok := h.registry.Lookup(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, roundResponse(sessionID, orch))
}

// DeleteSession handles DELETE /api/sessions/:id
func (h *RoundsHandler) DeleteSession(c *gin.Context) {
	if !h.registry.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
