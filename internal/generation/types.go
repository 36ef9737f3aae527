package generation

import (
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/corpus"
	"github.com/Conceptual-Machines/blessing-api/internal/llm"
	"github.com/Conceptual-Machines/blessing-api/internal/models"
	"github.com/Conceptual-Machines/blessing-api/internal/prompt"
)

// Status of a single variant, or of a round as a whole
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// VariantState is a point-in-time copy of one variant's session
type VariantState struct {
	Variant models.Style `json:"variant"`
	Label   string       `json:"label"`
	RoundID string       `json:"round_id,omitempty"`
	Model   string       `json:"model,omitempty"`
	Text    string       `json:"text"`
	Status  Status       `json:"status"`
	Error   string       `json:"error,omitempty"`
}

// EventType identifies what happened to a variant
type EventType string

const (
	EventStarted  EventType = "started"
	EventToken    EventType = "token"
	EventDone     EventType = "done"
	EventError    EventType = "error"
	EventCanceled EventType = "canceled"
)

// Event is delivered to listeners for every accepted state change.
// Events of one variant arrive in order; variants interleave freely.
type Event struct {
	RoundID    string
	Variant    models.Style
	Type       EventType
	Model      string
	Token      string
	TokenIndex int // 1-based, token events only
	Err        error
	Message    string // user-facing error text
	Prompt     prompt.Prompt
	MatchLevel corpus.MatchLevel
	Text       string // accumulated text, terminal events only
	Elapsed    time.Duration
}

// Listener observes round events. It runs on relay goroutines and must not block for long.
type Listener func(Event)

// RoundInput is one user action: a base request plus its credential source.
// The request's Style is ignored; every variant is generated.
type RoundInput struct {
	Request  models.GenerationRequest
	Explicit *models.Credentials
	ModelID  string
}

// CredentialResolver picks credentials for a variant
type CredentialResolver interface {
	Resolve(explicit *models.Credentials, modelID string) (models.Credentials, error)
}

// ExampleSelector picks few-shot examples for a variant
type ExampleSelector interface {
	Select(rel models.Relationship, style models.Style, length models.Length) corpus.FewShot
}

// PromptBuilder assembles the messages for a variant
type PromptBuilder interface {
	Build(req models.GenerationRequest, fewShot *corpus.FewShot) prompt.Prompt
}

// Dependencies are the collaborators an Orchestrator drives
type Dependencies struct {
	Resolver CredentialResolver
	Selector ExampleSelector
	Prompts  PromptBuilder
	Streamer llm.Streamer
}
