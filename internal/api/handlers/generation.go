package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/credentials"
	"github.com/Conceptual-Machines/blessing-api/internal/generation"
	"github.com/Conceptual-Machines/blessing-api/internal/llm"
	"github.com/Conceptual-Machines/blessing-api/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BlockingStreamer runs one upstream stream on the caller's goroutine
type BlockingStreamer interface {
	Stream(ctx context.Context, call llm.Call, sink llm.Sink)
}

// GenerationHandler relays a single variant straight to the client
type GenerationHandler struct {
	parser    *requestParser
	selector  generation.ExampleSelector
	prompts   generation.PromptBuilder
	streamer  BlockingStreamer
	listeners []generation.Listener
}

func NewGenerationHandler(
	resolver *credentials.Resolver,
	defaultModel string,
	selector generation.ExampleSelector,
	prompts generation.PromptBuilder,
	streamer BlockingStreamer,
	listeners ...generation.Listener,
) *GenerationHandler {
	return &GenerationHandler{
		parser:    &requestParser{resolver: resolver, defaultModel: defaultModel},
		selector:  selector,
		prompts:   prompts,
		streamer:  streamer,
		listeners: listeners,
	}
}

// Generate handles POST /api/generate
func (h *GenerationHandler) Generate(c *gin.Context) {
	parsed, ok := h.parser.parse(c, true)
	if !ok {
		return
	}
	req := parsed.request
	model := parsed.creds.ModelID

	fewShot := h.selector.Select(req.Relationship, req.Style, req.Length)
	p := h.prompts.Build(req, &fewShot)
	call := llm.NewCall(parsed.creds, p.System, p.User)

	fields := logger.WithContext(c)
	fields["model"] = model
	fields["variant"] = string(req.Style)
	fields["match_level"] = string(fewShot.MatchLevel)
	logger.Info("Generation started", fields)

	// Events let the round tracer and metrics listeners observe single-variant requests too
	base := generation.Event{RoundID: uuid.NewString(), Variant: req.Style, Model: model}
	startTime := time.Now()
	started := base
	started.Type = generation.EventStarted
	started.Prompt = p
	started.MatchLevel = fewShot.MatchLevel
	h.emit(started)

	sse := newSSEWriter(c)
	var (
		text     strings.Builder
		tokens   int
		finished bool
	)

	sink := llm.SinkFuncs{
		Token: func(delta string) {
			tokens++
			text.WriteString(delta)
			ev := base
			ev.Type = generation.EventToken
			ev.Token = delta
			ev.TokenIndex = tokens
			ev.Elapsed = time.Since(startTime)
			h.emit(ev)

			if err := sse.send(gin.H{"token": delta}); err != nil {
				logger.Warn("Failed to write SSE frame", logger.Fields{"request_id": c.GetString("request_id"), "error": err.Error()})
			}
		},
		Done: func() {
			finished = true
			_ = sse.done()
			logger.LogStreamCompleted(c.Request.Context(), model, string(req.Style), time.Since(startTime), tokens, logger.Fields{
				"request_id": c.GetString("request_id"),
			})

			ev := base
			ev.Type = generation.EventDone
			ev.Text = text.String()
			ev.Elapsed = time.Since(startTime)
			h.emit(ev)
		},
		Error: func(err error) {
			finished = true
			msg := llm.UserMessage(err)
			logger.Error("Generation failed", err, logger.Fields{
				"request_id": c.GetString("request_id"),
				"model":      model,
				"variant":    string(req.Style),
				"tokens":     tokens,
			})

			if sse.started {
				_ = sse.send(gin.H{"error": msg})
			} else {
				status, body := preStreamError(err)
				c.JSON(status, gin.H{"error": body})
			}

			ev := base
			ev.Type = generation.EventError
			ev.Err = err
			ev.Message = msg
			ev.Text = text.String()
			ev.Elapsed = time.Since(startTime)
			h.emit(ev)
		},
	}

	h.streamer.Stream(c.Request.Context(), call, sink)

	if !finished && c.Request.Context().Err() != nil {
		ev := base
		ev.Type = generation.EventCanceled
		ev.Text = text.String()
		ev.Elapsed = time.Since(startTime)
		h.emit(ev)
		logger.Info("Client disconnected during generation", logger.Fields{
			"request_id": c.GetString("request_id"),
			"tokens":     tokens,
		})
	}
}

func (h *GenerationHandler) emit(ev generation.Event) {
	for _, l := range h.listeners {
		l(ev)
	}
}

// preStreamError maps a failure that happened before any frame was written
// to an HTTP status and message. Upstream statuses pass through.
func preStreamError(err error) (int, string) {
	var httpErr *llm.UpstreamHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, httpErr.UserMessage()
	}
	return http.StatusBadGateway, fmt.Sprintf("代理请求失败: %s", llm.UserMessage(err))
}
