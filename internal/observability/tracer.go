package observability

import (
	"sync"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/generation"
	"github.com/Conceptual-Machines/blessing-api/internal/llm"
	"github.com/Conceptual-Machines/blessing-api/internal/logger"
	"github.com/Conceptual-Machines/blessing-api/internal/models"
)

// rounds that never report every variant (superseded or reset) are dropped after this
const staleRoundAge = 10 * time.Minute

type roundTrace struct {
	startedAt   time.Time
	trace       *Trace
	generations map[models.Style]*Generation
	open        int
}

// RoundTracer records one trace per round and one generation per variant
type RoundTracer struct {
	client *LangfuseClient

	mu     sync.Mutex
	rounds map[string]*roundTrace
}

// NewRoundTracer creates a tracer. A disabled client makes it a no-op.
func NewRoundTracer(client *LangfuseClient) *RoundTracer {
	return &RoundTracer{client: client, rounds: make(map[string]*roundTrace)}
}

// Listener returns the orchestrator hook
func (rt *RoundTracer) Listener() generation.Listener {
	return rt.observe
}

func (rt *RoundTracer) observe(ev generation.Event) {
	if !rt.client.IsEnabled() {
		return
	}

	switch ev.Type {
	case generation.EventStarted:
		rt.start(ev)
	case generation.EventDone, generation.EventError, generation.EventCanceled:
		rt.end(ev)
	}
}

func (rt *RoundTracer) start(ev generation.Event) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now()
	for id, old := range rt.rounds {
		if now.Sub(old.startedAt) > staleRoundAge {
			delete(rt.rounds, id)
		}
	}

	rd, ok := rt.rounds[ev.RoundID]
	if !ok {
		rd = &roundTrace{
			startedAt: now,
			trace: rt.client.StartTrace(rt.client.ctx, "blessing.round", map[string]interface{}{
				"round_id": ev.RoundID,
			}),
			generations: make(map[models.Style]*Generation, len(models.Styles)),
		}
		rt.rounds[ev.RoundID] = rd
		logger.Debug("Round trace started", logger.Fields{"round_id": ev.RoundID, "trace_id": rd.trace.ID()})
	}

	gen := rd.trace.Generation("variant."+string(ev.Variant), map[string]interface{}{
		"variant":     string(ev.Variant),
		"match_level": string(ev.MatchLevel),
	})
	gen.Model(ev.Model)
	gen.Input([]llm.Message{
		{Role: "system", Content: ev.Prompt.System},
		{Role: "user", Content: ev.Prompt.User},
	})
	rd.generations[ev.Variant] = gen
	rd.open++
}

func (rt *RoundTracer) end(ev generation.Event) {
	rt.mu.Lock()
	rd, ok := rt.rounds[ev.RoundID]
	if !ok {
		rt.mu.Unlock()
		return
	}
	gen, ok := rd.generations[ev.Variant]
	if !ok {
		rt.mu.Unlock()
		return
	}
	delete(rd.generations, ev.Variant)
	rd.open--
	finished := rd.open == 0
	if finished {
		delete(rt.rounds, ev.RoundID)
	}
	rt.mu.Unlock()

	gen.Output(ev.Text)
	gen.Metadata(map[string]interface{}{
		"outcome":     string(ev.Type),
		"duration_ms": ev.Elapsed.Milliseconds(),
	})
	switch ev.Type {
	case generation.EventError:
		gen.SetLevel("ERROR")
		gen.SetStatusMessage(ev.Message)
	case generation.EventCanceled:
		gen.SetLevel("WARNING")
		gen.SetStatusMessage("canceled")
	}
	gen.Finish()

	if finished {
		go rd.trace.Finish()
	}
}

// Pending returns the number of rounds with unfinished variants
func (rt *RoundTracer) Pending() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.rounds)
}
