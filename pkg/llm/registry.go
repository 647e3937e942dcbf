package llm

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/lonestarx1/opgraph/pkg/llm/anthropic"
	"github.com/lonestarx1/opgraph/pkg/llm/gemini"
	"github.com/lonestarx1/opgraph/pkg/llm/openai"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
)

// ConfigurationError indicates a provider could not be constructed because
// required configuration — typically an API key environment variable — is
// missing. It is returned instead of reaching into a vendor SDK with an
// empty credential and producing a confusing auth failure downstream.
type ConfigurationError struct {
	Provider opconfig.Provider
	EnvVar   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("llm: provider %s requires %s to be set", e.Provider, e.EnvVar)
}

// Registry lazily constructs and caches Provider instances, keyed by
// opconfig.Provider. Construction happens at most once per provider, on
// first Get call, so a pipeline that only ever selects Anthropic models
// never touches the OpenAI or Gemini SDKs or their credentials. Safe for
// concurrent use — the scheduler resolves providers for many steps in
// parallel.
type Registry struct {
	mu        sync.Mutex
	providers map[opconfig.Provider]Provider
	errs      map[opconfig.Provider]error
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[opconfig.Provider]Provider),
		errs:      make(map[opconfig.Provider]error),
	}
}

// Get returns the Provider for the given vendor, constructing it on first
// use from environment-sourced credentials. A failed construction is
// cached too, so a missing API key fails the same way on every call
// instead of retrying a vendor client build that can only fail again.
func (r *Registry) Get(ctx context.Context, provider opconfig.Provider) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[provider]; ok {
		return p, nil
	}
	if err, ok := r.errs[provider]; ok {
		return nil, err
	}

	p, err := r.construct(ctx, provider)
	if err != nil {
		r.errs[provider] = err
		return nil, err
	}
	r.providers[provider] = p
	return p, nil
}

func (r *Registry) construct(ctx context.Context, provider opconfig.Provider) (Provider, error) {
	switch provider {
	case opconfig.ProviderAnthropic:
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, &ConfigurationError{Provider: provider, EnvVar: "ANTHROPIC_API_KEY"}
		}
		return anthropic.New(key), nil

	case opconfig.ProviderOpenAI:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, &ConfigurationError{Provider: provider, EnvVar: "OPENAI_API_KEY"}
		}
		return openai.New(key), nil

	case opconfig.ProviderGemini:
		key := os.Getenv("GEMINI_API_KEY")
		if key == "" {
			return nil, &ConfigurationError{Provider: provider, EnvVar: "GEMINI_API_KEY"}
		}
		return gemini.New(ctx, key)

	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}
}

// Register installs a pre-constructed provider directly, bypassing lazy
// env-based construction. Used by tests, and by callers wiring a mock or
// in-process provider in for a quality tier.
func (r *Registry) Register(provider opconfig.Provider, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[provider] = p
	delete(r.errs, provider)
}
