package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/credentials"
	"github.com/Conceptual-Machines/blessing-api/internal/llm"
	"github.com/Conceptual-Machines/blessing-api/internal/logger"
	"github.com/Conceptual-Machines/blessing-api/internal/models"
	"github.com/google/uuid"
)

// Orchestrator runs rounds of three concurrently streamed variants.
// Starting a round cancels and discards the previous one; callbacks from a
// discarded session are dropped.
type Orchestrator struct {
	deps      Dependencies
	listeners []Listener

	mu       sync.Mutex
	seq      uint64
	current  *round
	sessions map[models.Style]*session
}

type round struct {
	id      string
	seq     uint64
	pending int // listener dispatches in flight
	done    chan struct{}
	once    sync.Once
}

func (r *round) finish() {
	r.once.Do(func() { close(r.done) })
}

type session struct {
	variant   models.Style
	round     *round
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time

	model  string
	text   strings.Builder
	tokens int
	status Status
	err    string
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithListener registers a listener for round events
func WithListener(l Listener) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.listeners = append(o.listeners, l)
		}
	}
}

// New creates an idle orchestrator
func New(deps Dependencies, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:     deps,
		sessions: make(map[models.Style]*session, len(models.Styles)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartRound cancels any running round and starts one session per variant.
// Each session lives until it completes, fails, or ctx is canceled.
func (o *Orchestrator) StartRound(ctx context.Context, in RoundInput) (string, error) {
	req := in.Request.Normalize().WithStyle(models.Styles[0])
	if err := req.Validate(); err != nil {
		return "", err
	}

	o.mu.Lock()
	prev, canceled := o.discardLocked()
	o.seq++
	r := &round{id: uuid.NewString(), seq: o.seq, done: make(chan struct{})}
	o.current = r

	started := make([]*session, 0, len(models.Styles))
	for _, style := range models.Styles {
		sctx, cancel := context.WithCancel(ctx)
		s := &session{
			variant:   style,
			round:     r,
			ctx:       sctx,
			cancel:    cancel,
			startedAt: time.Now(),
			status:    StatusGenerating,
		}
		o.sessions[style] = s
		started = append(started, s)
	}
	o.mu.Unlock()

	o.retire(prev, canceled)

	logger.Info("Round started", logger.Fields{
		"round_id":     r.id,
		"round":        r.seq,
		"relationship": string(req.Relationship),
		"length":       string(req.Length),
		"model":        in.ModelID,
		"user_key":     in.Explicit != nil && in.Explicit.Complete(),
	})

	for _, s := range started {
		o.launch(s, req.WithStyle(s.variant), in)
	}
	return r.id, nil
}

func (o *Orchestrator) launch(s *session, req models.GenerationRequest, in RoundInput) {
	defer func() {
		if p := recover(); p != nil {
			o.finishSession(s, StatusError, fmt.Errorf("variant %s panicked: %v", s.variant, p))
		}
	}()

	creds, err := o.deps.Resolver.Resolve(in.Explicit, in.ModelID)
	if err != nil {
		logger.Warn("Credential resolution failed", logger.Fields{
			"round_id": s.round.id,
			"variant":  string(s.variant),
			"error":    err.Error(),
		})
		o.finishSession(s, StatusError, err)
		return
	}

	fewShot := o.deps.Selector.Select(req.Relationship, req.Style, req.Length)
	p := o.deps.Prompts.Build(req, &fewShot)

	o.mu.Lock()
	if !o.liveLocked(s) {
		o.mu.Unlock()
		return
	}
	s.model = creds.ModelID
	s.round.pending++
	o.mu.Unlock()

	o.dispatch(s.round, Event{
		RoundID:    s.round.id,
		Variant:    s.variant,
		Type:       EventStarted,
		Model:      creds.ModelID,
		Prompt:     p,
		MatchLevel: fewShot.MatchLevel,
	})

	o.deps.Streamer.Open(s.ctx, llm.NewCall(creds, p.System, p.User), variantSink{o: o, s: s})
}

// CancelRound stops every session. Generating sessions go back to idle with
// whatever text they had; finished ones are left as they are.
func (o *Orchestrator) CancelRound() {
	o.mu.Lock()
	r := o.current
	var events []Event
	for _, style := range models.Styles {
		s, ok := o.sessions[style]
		if !ok {
			continue
		}
		s.cancel()
		if s.status == StatusGenerating {
			s.status = StatusIdle
			events = append(events, Event{
				RoundID: s.round.id,
				Variant: s.variant,
				Type:    EventCanceled,
				Model:   s.model,
				Text:    s.text.String(),
				Elapsed: time.Since(s.startedAt),
			})
		}
	}
	if r != nil {
		r.pending += len(events)
	}
	o.mu.Unlock()

	if r == nil {
		return
	}
	if len(events) > 0 {
		logger.Info("Round canceled", logger.Fields{"round_id": r.id, "variants": len(events)})
	}
	for _, ev := range events {
		o.dispatch(r, ev)
	}
	o.settle(r)
}

// Reset cancels everything and returns to the initial idle state
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	prev, canceled := o.discardLocked()
	o.current = nil
	o.mu.Unlock()

	o.retire(prev, canceled)
}

// RoundID returns the current round, or "" before the first round and after Reset
func (o *Orchestrator) RoundID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return ""
	}
	return o.current.id
}

// Snapshot copies every variant's state in presentation order
func (o *Orchestrator) Snapshot() []VariantState {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]VariantState, 0, len(models.Styles))
	for _, style := range models.Styles {
		state := VariantState{Variant: style, Label: style.Label(), Status: StatusIdle}
		if s, ok := o.sessions[style]; ok {
			state.RoundID = s.round.id
			state.Model = s.model
			state.Text = s.text.String()
			state.Status = s.status
			state.Error = s.err
		}
		out = append(out, state)
	}
	return out
}

// Status derives the aggregate: idle when nothing has happened, generating
// while any variant runs, done otherwise (even if every variant failed)
func (o *Orchestrator) Status() Status {
	return Aggregate(o.Snapshot())
}

// Aggregate derives the round status from variant states
func Aggregate(states []VariantState) Status {
	allIdle := true
	for _, st := range states {
		if st.Status == StatusGenerating {
			return StatusGenerating
		}
		if st.Status != StatusIdle || st.Text != "" {
			allIdle = false
		}
	}
	if allIdle {
		return StatusIdle
	}
	return StatusDone
}

// Wait blocks until the current round has no generating session and every
// listener has seen its events, or ctx ends
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	r := o.current
	o.mu.Unlock()
	if r == nil {
		return nil
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// discardLocked cancels and forgets all sessions. It returns the superseded
// round and a canceled event for every session that was still generating;
// those events are already counted in the round's pending dispatches.
func (o *Orchestrator) discardLocked() (*round, []Event) {
	var events []Event
	for _, style := range models.Styles {
		s, ok := o.sessions[style]
		if !ok {
			continue
		}
		s.cancel()
		if s.status == StatusGenerating {
			s.status = StatusIdle
			events = append(events, Event{
				RoundID: s.round.id,
				Variant: s.variant,
				Type:    EventCanceled,
				Model:   s.model,
				Text:    s.text.String(),
				Elapsed: time.Since(s.startedAt),
			})
		}
		delete(o.sessions, style)
	}
	if o.current != nil {
		o.current.pending += len(events)
	}
	return o.current, events
}

// retire reports the superseded round's canceled variants and releases its waiters
func (o *Orchestrator) retire(prev *round, canceled []Event) {
	if prev == nil {
		return
	}
	if len(canceled) > 0 {
		logger.Info("Round superseded", logger.Fields{"round_id": prev.id, "variants": len(canceled)})
	}
	for _, ev := range canceled {
		o.dispatch(prev, ev)
	}
	prev.finish()
}

// liveLocked reports whether s still belongs to the current round and is running
func (o *Orchestrator) liveLocked(s *session) bool {
	return o.sessions[s.variant] == s && s.status == StatusGenerating
}

func (o *Orchestrator) onToken(s *session, delta string) {
	o.mu.Lock()
	if !o.liveLocked(s) {
		o.mu.Unlock()
		return
	}
	s.text.WriteString(delta)
	s.tokens++
	ev := Event{
		RoundID:    s.round.id,
		Variant:    s.variant,
		Type:       EventToken,
		Model:      s.model,
		Token:      delta,
		TokenIndex: s.tokens,
		Elapsed:    time.Since(s.startedAt),
	}
	s.round.pending++
	o.mu.Unlock()

	o.dispatch(s.round, ev)
}

func (o *Orchestrator) finishSession(s *session, status Status, err error) {
	o.mu.Lock()
	if !o.liveLocked(s) {
		o.mu.Unlock()
		return
	}
	s.status = status
	ev := Event{
		RoundID: s.round.id,
		Variant: s.variant,
		Type:    EventDone,
		Model:   s.model,
		Text:    s.text.String(),
		Elapsed: time.Since(s.startedAt),
	}
	if err != nil {
		s.err = errorMessage(err)
		ev.Type = EventError
		ev.Err = err
		ev.Message = s.err
	}
	s.cancel()
	s.round.pending++
	o.mu.Unlock()

	o.dispatch(s.round, ev)
}

func (o *Orchestrator) dispatch(r *round, ev Event) {
	defer func() {
		o.mu.Lock()
		r.pending--
		o.mu.Unlock()
		o.settle(r)
	}()

	for _, l := range o.listeners {
		l(ev)
	}
}

// settle closes the round's done channel once nothing runs and nothing is being dispatched
func (o *Orchestrator) settle(r *round) {
	o.mu.Lock()
	settled := r.pending == 0
	if settled && o.current == r {
		for _, s := range o.sessions {
			if s.status == StatusGenerating {
				settled = false
				break
			}
		}
	}
	o.mu.Unlock()

	if settled {
		r.finish()
	}
}

func errorMessage(err error) string {
	if errors.Is(err, credentials.ErrNoCredentials) {
		return "没有可用的模型，请填写 API Key 或选择其他模型"
	}
	return llm.UserMessage(err)
}

type variantSink struct {
	o *Orchestrator
	s *session
}

func (v variantSink) OnToken(delta string) { v.o.onToken(v.s, delta) }
func (v variantSink) OnDone()              { v.o.finishSession(v.s, StatusDone, nil) }
func (v variantSink) OnError(err error)    { v.o.finishSession(v.s, StatusError, err) }
