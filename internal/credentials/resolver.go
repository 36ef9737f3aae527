package credentials

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/models"
)

// ErrNoCredentials means neither explicit credentials nor a usable pool entry exist
var ErrNoCredentials = errors.New("no credentials available")

// Provider is one server-side OpenAI-compatible endpoint
type Provider struct {
	ID           string
	Label        string
	BaseURL      string
	DefaultModel string
	APIKeyEnv    string
}

// DefaultProviders is the server pool. A provider is only offered when its key is set.
var DefaultProviders = []Provider{
	{ID: "deepseek", Label: "DeepSeek", BaseURL: "https://api.deepseek.com", DefaultModel: "deepseek-chat", APIKeyEnv: "DEEPSEEK_API_KEY"},
	{ID: "openai", Label: "OpenAI", BaseURL: "https://api.openai.com", DefaultModel: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
	{ID: "zhipu", Label: "智谱 GLM", BaseURL: "https://open.bigmodel.cn/api/paas/v4", DefaultModel: "glm-4-flash", APIKeyEnv: "ZHIPU_API_KEY"},
	{ID: "moonshot", Label: "月之暗面 Kimi", BaseURL: "https://api.moonshot.cn", DefaultModel: "moonshot-v1-8k", APIKeyEnv: "MOONSHOT_API_KEY"},
	{ID: "dashscope", Label: "阿里通义", BaseURL: "https://dashscope.aliyuncs.com/compatible-mode", DefaultModel: "qwen-plus", APIKeyEnv: "DASHSCOPE_API_KEY"},
	{ID: "siliconflow", Label: "硅基流动", BaseURL: "https://api.siliconflow.cn", DefaultModel: "Qwen/Qwen3-8B", APIKeyEnv: "SILICONFLOW_API_KEY"},
}

// LookupFunc reads a secret by name, typically os.LookupEnv
type LookupFunc func(key string) (string, bool)

type poolEntry struct {
	provider Provider
	apiKey   string
}

// Pool holds the providers whose secrets were present when it was built
type Pool struct {
	entries []poolEntry
}

// NewPool keeps every provider whose key is present and non-blank
func NewPool(providers []Provider, lookup LookupFunc) *Pool {
	p := &Pool{}
	for _, prov := range providers {
		key, ok := lookup(prov.APIKeyEnv)
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		p.entries = append(p.entries, poolEntry{provider: prov, apiKey: key})
	}
	return p
}

// Len returns the number of available providers
func (p *Pool) Len() int {
	return len(p.entries)
}

// Lookup resolves a model id to the provider serving it
func (p *Pool) Lookup(modelID string) (models.Credentials, bool) {
	for _, e := range p.entries {
		if e.provider.DefaultModel == modelID {
			return e.credentials(), true
		}
	}
	return models.Credentials{}, false
}

// AvailableModels lists the models a client may select. Keys are never included.
func (p *Pool) AvailableModels() []models.ModelInfo {
	out := make([]models.ModelInfo, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, models.ModelInfo{
			ID:       e.provider.DefaultModel,
			Name:     fmt.Sprintf("%s (%s)", e.provider.Label, e.provider.DefaultModel),
			Provider: e.provider.ID,
		})
	}
	return out
}

func (e poolEntry) credentials() models.Credentials {
	return models.Credentials{
		APIKey:  e.apiKey,
		BaseURL: e.provider.BaseURL,
		ModelID: e.provider.DefaultModel,
		Source:  models.SourceServer,
	}
}

// Policy selects among available pool entries when explicit credentials are absent
type Policy string

const (
	// PolicyModel resolves only by explicit model id
	PolicyModel Policy = "model"
	// PolicyRandom honors a model id when it resolves, otherwise picks uniformly at random
	PolicyRandom Policy = "random"
)

// Resolver decides which endpoint, key and model serve a request
type Resolver struct {
	pool   *Pool
	policy Policy

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Resolver
type Option func(*Resolver)

// WithRand replaces the random source used by PolicyRandom
func WithRand(rng *rand.Rand) Option {
	return func(r *Resolver) {
		if rng != nil {
			r.rng = rng
		}
	}
}

// NewResolver creates a resolver over pool
func NewResolver(pool *Pool, policy Policy, opts ...Option) *Resolver {
	if pool == nil {
		pool = &Pool{}
	}
	seed := uint64(time.Now().UnixNano())
	r := &Resolver{
		pool:   pool,
		policy: policy,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pool exposes the server pool, e.g. for listing models
func (r *Resolver) Pool() *Pool {
	return r.pool
}

// Policy returns the configured selection policy
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Resolve returns explicit credentials verbatim when complete, otherwise a pool entry.
// No network validation happens here.
func (r *Resolver) Resolve(explicit *models.Credentials, modelID string) (models.Credentials, error) {
	if explicit != nil && explicit.Complete() {
		creds := *explicit
		creds.Source = models.SourceUser
		return creds, nil
	}

	modelID = strings.TrimSpace(modelID)
	if modelID != "" {
		if creds, ok := r.pool.Lookup(modelID); ok {
			return creds, nil
		}
		if r.policy != PolicyRandom {
			return models.Credentials{}, fmt.Errorf("model %q: %w", modelID, ErrNoCredentials)
		}
	}

	if r.policy == PolicyRandom && r.pool.Len() > 0 {
		r.mu.Lock()
		idx := r.rng.IntN(r.pool.Len())
		r.mu.Unlock()
		return r.pool.entries[idx].credentials(), nil
	}

	return models.Credentials{}, ErrNoCredentials
}
