package generation

import (
	"testing"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/config"
	"github.com/Conceptual-Machines/blessing-api/internal/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStack(t *testing.T) {
	cfg := &config.Config{
		CredentialPolicy:       config.PolicyRandom,
		StreamIdleTimeout:      time.Second,
		UpstreamConnectTimeout: time.Second,
	}
	env := map[string]string{"DEEPSEEK_API_KEY": "sk-ds", "MOONSHOT_API_KEY": " "}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	stack, err := NewStack(cfg, lookup, func(Event) {})
	require.NoError(t, err)

	assert.Positive(t, stack.Corpus.Size())
	assert.Equal(t, 1, stack.Resolver.Pool().Len())
	assert.Equal(t, credentials.PolicyRandom, stack.Resolver.Policy())
	assert.Len(t, stack.Listeners(), 1)

	// random policy: no model still resolves to the single configured provider
	creds, err := stack.Resolver.Resolve(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", creds.ModelID)

	orch := stack.NewOrchestrator()
	assert.Equal(t, StatusIdle, orch.Status())
	assert.Len(t, orch.listeners, 1)
}
