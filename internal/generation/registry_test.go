package generation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(opts ...RegistryOption) (*Registry, *fakeStreamer, *time.Time) {
	streamer := &fakeStreamer{}
	now := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(func() *Orchestrator {
		return New(Dependencies{
			Resolver: staticResolver(),
			Selector: fixedSelector{},
			Prompts:  styleBuilder{},
			Streamer: streamer,
		})
	}, opts...)
	r.now = func() time.Time { return now }
	return r, streamer, &now
}

func mustGet(t *testing.T, r *Registry, id string) *Orchestrator {
	t.Helper()
	o, err := r.Get(id)
	require.NoError(t, err)
	return o
}

func TestRegistryGetCreatesOnce(t *testing.T) {
	r, _, _ := newTestRegistry()

	a := mustGet(t, r, "alice")
	assert.Same(t, a, mustGet(t, r, "alice"))
	assert.NotSame(t, a, mustGet(t, r, "bob"))
	assert.Equal(t, 2, r.Len())

	_, ok := r.Lookup("carol")
	assert.False(t, ok)
	found, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, a, found)
}

func TestRegistryDeleteResets(t *testing.T) {
	r, streamer, _ := newTestRegistry()

	o := mustGet(t, r, "alice")
	_, err := o.StartRound(context.Background(), baseInput())
	require.NoError(t, err)

	assert.True(t, r.Delete("alice"))
	assert.False(t, r.Delete("alice"))
	assert.Zero(t, r.Len())
	assert.Equal(t, StatusIdle, o.Status())
	for _, s := range streamer.streams() {
		assert.Error(t, s.ctx.Err())
	}
}

func TestRegistrySweep(t *testing.T) {
	r, _, now := newTestRegistry()

	mustGet(t, r, "idle")
	busy := mustGet(t, r, "busy")
	_, err := busy.StartRound(context.Background(), baseInput())
	require.NoError(t, err)

	*now = now.Add(10 * time.Minute)
	mustGet(t, r, "fresh")

	assert.Equal(t, 1, r.Sweep(5*time.Minute))
	_, ok := r.Lookup("idle")
	assert.False(t, ok)
	_, ok = r.Lookup("busy")
	assert.True(t, ok, "generating sessions are never swept")
	_, ok = r.Lookup("fresh")
	assert.True(t, ok)
}

func TestRegistryMaxSessions(t *testing.T) {
	r, _, now := newTestRegistry(WithMaxSessions(2))

	a := mustGet(t, r, "a")
	mustGet(t, r, "b")

	_, err := r.Get("c")
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.Equal(t, 2, r.Len())

	// existing sessions stay reachable at the cap
	assert.Same(t, a, mustGet(t, r, "a"))

	assert.True(t, r.Delete("b"))
	mustGet(t, r, "c")

	*now = now.Add(time.Hour)
	assert.Equal(t, 2, r.Sweep(time.Minute))
	mustGet(t, r, "d")
}

func TestRegistryRunStopsWithContext(t *testing.T) {
	r, _, _ := newTestRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
