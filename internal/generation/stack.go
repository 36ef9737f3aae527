package generation

import (
	"fmt"

	"github.com/Conceptual-Machines/blessing-api/internal/config"
	"github.com/Conceptual-Machines/blessing-api/internal/corpus"
	"github.com/Conceptual-Machines/blessing-api/internal/credentials"
	"github.com/Conceptual-Machines/blessing-api/internal/llm"
	"github.com/Conceptual-Machines/blessing-api/internal/prompt"
	"github.com/Conceptual-Machines/blessing-api/pkg/embedded"
)

// Stack is the wired set of collaborators shared by the server and the CLI
type Stack struct {
	Resolver *credentials.Resolver
	Corpus   *corpus.Corpus
	Selector *corpus.Selector
	Prompts  *prompt.Builder
	Relay    *llm.Relay

	listeners []Listener
}

// NewStack loads the embedded corpus and prompt layers and builds the
// credential pool from lookup. Listeners are attached to every orchestrator.
func NewStack(cfg *config.Config, lookup credentials.LookupFunc, listeners ...Listener) (*Stack, error) {
	c, err := corpus.Load(embedded.BlessingsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load blessing corpus: %w", err)
	}

	builder, err := prompt.NewPromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt layers: %w", err)
	}

	policy := credentials.PolicyModel
	if cfg.IsRandomPolicy() {
		policy = credentials.PolicyRandom
	}

	pool := credentials.NewPool(credentials.DefaultProviders, lookup)
	relay := llm.NewRelay(
		llm.WithHTTPClient(llm.NewHTTPClient(cfg.UpstreamConnectTimeout)),
		llm.WithIdleTimeout(cfg.StreamIdleTimeout),
	)

	return &Stack{
		Resolver:  credentials.NewResolver(pool, policy),
		Corpus:    c,
		Selector:  corpus.NewSelector(c),
		Prompts:   builder,
		Relay:     relay,
		listeners: listeners,
	}, nil
}

// Dependencies returns the orchestrator collaborators
func (s *Stack) Dependencies() Dependencies {
	return Dependencies{
		Resolver: s.Resolver,
		Selector: s.Selector,
		Prompts:  s.Prompts,
		Streamer: s.Relay,
	}
}

// Listeners returns the stack-wide listeners
func (s *Stack) Listeners() []Listener {
	return s.listeners
}

// NewOrchestrator builds an orchestrator with the stack-wide listeners first
func (s *Stack) NewOrchestrator(opts ...Option) *Orchestrator {
	all := make([]Option, 0, len(s.listeners)+len(opts))
	for _, l := range s.listeners {
		all = append(all, WithListener(l))
	}
	return New(s.Dependencies(), append(all, opts...)...)
}
