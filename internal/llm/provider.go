package llm

import (
	"context"

	"github.com/Conceptual-Machines/blessing-api/internal/models"
)

// Sampling defaults for greeting generation
const (
	DefaultTemperature = 0.9
	DefaultMaxTokens   = 1024
)

// Streamer opens one streaming completion. Implementations must honor the Sink contract.
type Streamer interface {
	Open(ctx context.Context, call Call, sink Sink)
}

// Message is one chat message sent upstream
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Call is a single chat completion to stream
type Call struct {
	Credentials models.Credentials
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// NewCall builds the system+user call with default sampling
func NewCall(creds models.Credentials, system, user string) Call {
	return Call{
		Credentials: creds,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

func (c Call) request() chatRequest {
	return chatRequest{
		Model:       c.Credentials.ModelID,
		Messages:    c.Messages,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Stream:      true,
	}
}

// Sink receives a stream's output: any number of OnToken calls, then at most one of
// OnDone or OnError. A canceled stream ends with neither.
// All calls for one stream happen on the same goroutine.
type Sink interface {
	OnToken(delta string)
	OnDone()
	OnError(err error)
}

// SinkFuncs adapts plain functions to Sink. Nil fields are skipped.
type SinkFuncs struct {
	Token func(delta string)
	Done  func()
	Error func(err error)
}

func (s SinkFuncs) OnToken(delta string) {
	if s.Token != nil {
		s.Token(delta)
	}
}

func (s SinkFuncs) OnDone() {
	if s.Done != nil {
		s.Done()
	}
}

func (s SinkFuncs) OnError(err error) {
	if s.Error != nil {
		s.Error(err)
	}
}
