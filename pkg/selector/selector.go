// Package selector resolves the ModelConfig a given operation should use
// for a given execution context: a pure function with no hidden state,
// expressed as a free function since there is nothing to configure.
package selector

import (
	"fmt"

	"github.com/lonestarx1/opgraph/internal/obslog"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
)

// ConfigurationError indicates an operation has no ModelConfig entry
// for the requested quality level.
type ConfigurationError struct {
	OperationID string
	Quality     opconfig.QualityLevel
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("selector: operation %q has no model config for quality level %q", e.OperationID, e.Quality)
}

// Select resolves the ModelConfig an operation should dispatch with,
// given the user's execution context. Rules, applied in order:
//
//  1. Look up aiConfig.ModeConfigs[context.Quality]. Absent → ConfigurationError.
//  2. If the user's preferences avoid the primary's provider, consult
//     aiConfig.FallbackConfigs[context.Quality].
//  3. If a fallback exists and its provider is not also avoided, return it.
//  4. Otherwise return the primary anyway — fallback chaining is exactly
//     one level deep, never N-deep — and log a warning, since the
//     user's avoidance preference is being overridden to let the
//     operation complete rather than block it.
func Select(operationID string, aiConfig opconfig.OperationAIConfig, ctx opconfig.ExecutionContext) (opconfig.ModelConfig, error) {
	primary, ok := aiConfig.Primary(ctx.Quality)
	if !ok {
		return opconfig.ModelConfig{}, &ConfigurationError{OperationID: operationID, Quality: ctx.Quality}
	}

	if !ctx.Preferences.Avoids(primary.Provider) {
		return primary, nil
	}

	fallback, hasFallback := aiConfig.Fallback(ctx.Quality)
	if hasFallback && !ctx.Preferences.Avoids(fallback.Provider) {
		return fallback, nil
	}

	obslog.Default().Warn("model selector: graceful degrade, both primary and fallback providers are avoided",
		"operationId", operationID,
		"quality", string(ctx.Quality),
		"provider", string(primary.Provider),
	)
	return primary, nil
}
