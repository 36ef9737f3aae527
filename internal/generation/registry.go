package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/logger"
)

// ErrTooManySessions is returned when a new session would exceed the registry limit
var ErrTooManySessions = errors.New("session limit reached")

type registryEntry struct {
	orch     *Orchestrator
	lastUsed time.Time
}

// Registry keeps named orchestrators in memory for clients that poll
type Registry struct {
	factory     func() *Orchestrator
	now         func() time.Time
	maxSessions int

	mu      sync.Mutex
	entries map[string]*registryEntry
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithMaxSessions caps how many sessions may exist at once. Zero means no cap.
func WithMaxSessions(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxSessions = n
		}
	}
}

// NewRegistry creates a registry that builds orchestrators on first use
func NewRegistry(factory func() *Orchestrator, opts ...RegistryOption) *Registry {
	r := &Registry{
		factory: factory,
		now:     time.Now,
		entries: make(map[string]*registryEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the orchestrator for id, creating it if needed.
// Creation fails with ErrTooManySessions once the cap is reached.
func (r *Registry) Get(id string) (*Orchestrator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		if r.maxSessions > 0 && len(r.entries) >= r.maxSessions {
			return nil, ErrTooManySessions
		}
		e = &registryEntry{orch: r.factory()}
		r.entries[id] = e
	}
	e.lastUsed = r.now()
	return e.orch, nil
}

// Lookup returns the orchestrator for id without creating one
func (r *Registry) Lookup(id string) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.orch, true
}

// Delete resets and forgets id
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		e.orch.Reset()
	}
	return ok
}

// Len returns the number of tracked sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep forgets sessions unused for maxIdle that are not generating
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var stale []*registryEntry
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) && e.orch.Status() != StatusGenerating {
			stale = append(stale, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.orch.Reset()
	}
	return len(stale)
}

// Run sweeps every interval until ctx ends
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(maxIdle); n > 0 {
				logger.Info("Swept idle sessions", logger.Fields{"count": n, "remaining": r.Len()})
			}
		}
	}
}
