// Package config handles opgraph project configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/lonestarx1/opgraph/pkg/opconfig"
)

// validate is a package-level validator instance, reused across Load
// calls per go-playground/validator's own recommendation (its struct
// tag cache is only useful if the instance persists).
var validate = validator.New()

// ProjectConfig is the top-level opgraph.yaml structure: a named set
// of operation AI configs that seed the in-process OperationAIConfig
// registry each pipeline's operations look themselves up in by ID.
type ProjectConfig struct {
	// Version is the config schema version. Must be "1".
	Version string `yaml:"version" validate:"required,eq=1"`
	// Operations maps operation IDs to their AI configuration.
	Operations map[string]OperationConfig `yaml:"operations" validate:"required,min=1,dive"`
}

// OperationConfig is one operation's opgraph.yaml entry: a ModelConfig
// per quality tier, plus an optional one-level fallback tier,
// mirroring opconfig.OperationAIConfig's shape so Load can hand the
// parsed value straight to NewAIOperation's WithAIConfig option.
type OperationConfig struct {
	ModeConfigs              map[opconfig.QualityLevel]ModelConfig `yaml:"mode_configs" validate:"required,min=1,dive"`
	FallbackConfigs          map[opconfig.QualityLevel]ModelConfig `yaml:"fallback_configs,omitempty" validate:"omitempty,dive"`
	RequiresStructuredOutput bool                                  `yaml:"requires_structured_output,omitempty"`
}

// ModelConfig is a single quality tier's provider/model dispatch
// configuration, the YAML-facing twin of opconfig.ModelConfig.
type ModelConfig struct {
	Provider           string   `yaml:"provider" validate:"required,oneof=openai anthropic gemini"`
	Model              string   `yaml:"model" validate:"required"`
	Temperature        float64  `yaml:"temperature" validate:"gte=0,lte=1"`
	MaxTokens          int      `yaml:"max_tokens" validate:"required,gt=0"`
	TopP               *float64 `yaml:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	Timeout            Duration `yaml:"timeout,omitempty"`
	Retries            int      `yaml:"retries,omitempty" validate:"gte=0"`
	OutputFormat       string   `yaml:"output_format,omitempty" validate:"omitempty,oneof=text json"`
	SystemPromptSuffix string   `yaml:"system_prompt_suffix,omitempty"`
}

// ToOpConfig converts the YAML-facing ModelConfig to opconfig.ModelConfig.
func (m ModelConfig) ToOpConfig() opconfig.ModelConfig {
	return opconfig.ModelConfig{
		Provider:           opconfig.Provider(m.Provider),
		Model:              m.Model,
		Temperature:        m.Temperature,
		MaxTokens:          m.MaxTokens,
		TopP:               m.TopP,
		Timeout:            m.Timeout.Duration,
		Retries:            m.Retries,
		OutputFormat:       opconfig.OutputFormat(m.OutputFormat),
		SystemPromptSuffix: m.SystemPromptSuffix,
	}
}

// ToOpConfig converts the YAML-facing OperationConfig to
// opconfig.OperationAIConfig, the shape pkg/operation.WithAIConfig expects.
func (c OperationConfig) ToOpConfig() opconfig.OperationAIConfig {
	modes := make(map[opconfig.QualityLevel]opconfig.ModelConfig, len(c.ModeConfigs))
	for q, mc := range c.ModeConfigs {
		modes[q] = mc.ToOpConfig()
	}
	var fallbacks map[opconfig.QualityLevel]opconfig.ModelConfig
	if len(c.FallbackConfigs) > 0 {
		fallbacks = make(map[opconfig.QualityLevel]opconfig.ModelConfig, len(c.FallbackConfigs))
		for q, mc := range c.FallbackConfigs {
			fallbacks[q] = mc.ToOpConfig()
		}
	}
	return opconfig.OperationAIConfig{
		ModeConfigs:              modes,
		FallbackConfigs:          fallbacks,
		RequiresStructuredOutput: c.RequiresStructuredOutput,
	}
}

// Duration wraps time.Duration with YAML string unmarshaling support.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "30s" or "5m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.Duration.String(), nil
}

// Load reads an opgraph.yaml file, performs environment variable
// substitution, parses the YAML, and validates the result.
func Load(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	substituted := Substitute(string(data))

	var cfg ProjectConfig
	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is well-formed, running
// go-playground/validator's struct-tag rules and then wrapping the
// first failure into a single plain "config: ..." message so CLI
// error output stays readable.
func (c *ProjectConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s", describeFieldError(fe))
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// describeFieldError turns one validator.FieldError into a plain,
// human-readable message
// ("ProjectConfig.Operations[summarize].ModeConfigs[standard].Model is required")
// rather than validator's default machine-oriented text.
func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "eq":
		return fmt.Sprintf("%s: unsupported value %q (expected %q)", fe.Namespace(), fe.Value(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: unsupported value %q (valid: %s)", fe.Namespace(), fe.Value(), fe.Param())
	case "min":
		return fmt.Sprintf("%s: at least %s entr%s required", fe.Namespace(), fe.Param(), pluralY(fe.Param()))
	default:
		return fmt.Sprintf("%s: failed %q validation", fe.Namespace(), fe.Tag())
	}
}

func pluralY(param string) string {
	if param == "1" {
		return "y is"
	}
	return "ies are"
}
