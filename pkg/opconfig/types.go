// Package opconfig defines the enumerations, model configuration, and
// execution-context types shared by every layer of the operation
// pipeline engine: quality tiers, providers, per-tier model
// configuration, and the per-run execution context carried into every
// operation.
package opconfig

import (
	"context"
	"fmt"
	"time"
)

// QualityLevel selects the (model, cost, latency) profile for an
// operation. It is set at request time and may be overridden per-step.
type QualityLevel string

const (
	// Fast favors latency and cost over quality.
	Fast QualityLevel = "fast"
	// Standard is the default balance of quality, latency, and cost.
	Standard QualityLevel = "standard"
	// Expert favors quality over latency and cost.
	Expert QualityLevel = "expert"
)

// Valid reports whether q is one of the declared quality levels.
func (q QualityLevel) Valid() bool {
	switch q {
	case Fast, Standard, Expert:
		return true
	default:
		return false
	}
}

// UnmarshalYAML parses a quality level from a YAML scalar and
// validates it, so malformed config fails at load time rather than at
// first pipeline run.
func (q *QualityLevel) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v := QualityLevel(s)
	if !v.Valid() {
		return fmt.Errorf("opconfig: invalid quality level %q", s)
	}
	*q = v
	return nil
}

// Provider enumerates supported LLM vendors, plus a sentinel for "no
// provider" (operations that are not AI operations, or a model config
// slot that was never filled in).
type Provider string

const (
	// ProviderAnthropic routes through the Anthropic Messages API.
	ProviderAnthropic Provider = "anthropic"
	// ProviderOpenAI routes through the OpenAI Chat Completions API.
	ProviderOpenAI Provider = "openai"
	// ProviderGemini routes through the Google Gemini API.
	ProviderGemini Provider = "gemini"
	// ProviderNone is the "n/a" sentinel — no provider configured.
	ProviderNone Provider = "n/a"
)

// OutputFormat constrains how an AI operation expects its provider
// response to be shaped.
type OutputFormat string

const (
	// OutputJSON requests (natively or via instruction) a JSON response.
	OutputJSON OutputFormat = "json"
	// OutputText requests a free-form text response. The zero value ""
	// is treated the same way.
	OutputText OutputFormat = "text"
)

// ModelConfig is the immutable per-tier configuration for an
// operation: which provider/model to call and with what parameters.
type ModelConfig struct {
	Provider            Provider      `yaml:"provider" json:"provider"`
	Model               string        `yaml:"model" json:"model"`
	Temperature         float64       `yaml:"temperature" json:"temperature"`
	MaxTokens           int           `yaml:"max_tokens" json:"max_tokens"`
	TopP                *float64      `yaml:"top_p,omitempty" json:"top_p,omitempty"`
	Timeout             time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retries             int           `yaml:"retries,omitempty" json:"retries,omitempty"`
	OutputFormat        OutputFormat  `yaml:"output_format,omitempty" json:"output_format,omitempty"`
	SystemPromptSuffix  string        `yaml:"system_prompt_suffix,omitempty" json:"system_prompt_suffix,omitempty"`
}

// OperationAIConfig declares, per quality tier, the model configuration
// an AI operation dispatches with, plus an optional one-level fallback
// used when the primary provider is forbidden by the caller (see
// pkg/selector).
type OperationAIConfig struct {
	ModeConfigs              map[QualityLevel]ModelConfig `yaml:"mode_configs"`
	FallbackConfigs          map[QualityLevel]ModelConfig `yaml:"fallback_configs,omitempty"`
	RequiresStructuredOutput bool                         `yaml:"requires_structured_output,omitempty"`
}

// Primary returns the ModelConfig declared for the given quality tier,
// or false if the operation has no configuration for that tier.
func (c OperationAIConfig) Primary(q QualityLevel) (ModelConfig, bool) {
	mc, ok := c.ModeConfigs[q]
	return mc, ok
}

// Fallback returns the declared fallback ModelConfig for the given
// quality tier, or false if none is declared.
func (c OperationAIConfig) Fallback(q QualityLevel) (ModelConfig, bool) {
	mc, ok := c.FallbackConfigs[q]
	return mc, ok
}

// UserPreferences carries caller-supplied soft constraints. pkg/selector
// consults AvoidProviders, degrading gracefully rather than enforcing it
// as a hard gate (see its fallback rules). MaxCostPerRequest is carried
// but not read anywhere in the module; no spend limit is applied.
type UserPreferences struct {
	AvoidProviders  []Provider
	MaxCostPerRequest float64
}

// Avoids reports whether p appears in the user's avoid-list.
func (u UserPreferences) Avoids(p Provider) bool {
	for _, avoided := range u.AvoidProviders {
		if avoided == p {
			return true
		}
	}
	return false
}

// RetryConfig controls per-step retry behavior in the scheduler.
type RetryConfig struct {
	MaxRetries          int
	RetryDelay          time.Duration
	ExponentialBackoff  bool
	RetryableErrorTypes []string
}

// ExecutionContext is immutable for the duration of one pipeline run
// and is carried into every operation's Execute/EstimateCost call.
type ExecutionContext struct {
	UserID      string
	ProjectID   string
	RequestID   string
	Quality     QualityLevel
	StartTime   time.Time
	Priority    int
	UserTier    string
	Preferences UserPreferences
	SharedData  map[string]any

	// PipelineRetryConfig is the pipeline-wide default retry policy;
	// individual steps may override it.
	PipelineRetryConfig RetryConfig

	// Ctx carries cancellation and deadlines for the run. The engine
	// sets it to each step's context (see WithContext) before calling
	// the step's operation; it does not read it itself. Callers should
	// prefer passing context.Context explicitly to ExecutePipeline and
	// let the engine populate this field rather than setting it
	// themselves.
	Ctx context.Context
}

// WithContext returns a copy of ec carrying ctx, used by the engine to
// thread a per-run (and, internally, per-step) context through to
// operations without mutating the caller's ExecutionContext.
func (ec ExecutionContext) WithContext(ctx context.Context) ExecutionContext {
	ec.Ctx = ctx
	return ec
}

// Context returns ec.Ctx, defaulting to context.Background() if unset,
// so operations never need a nil check.
func (ec ExecutionContext) Context() context.Context {
	if ec.Ctx == nil {
		return context.Background()
	}
	return ec.Ctx
}
