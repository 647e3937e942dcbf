// Package observability implements a pluggable storage sink: a
// StorageAdapter receiving six step lifecycle events, kept
// deliberately free of any dependency on pkg/engine or pkg/operation so
// both can depend on it without a cycle. Hooks are identified by a
// stepID string; pkg/engine passes the pipeline step id to
// OnStepComplete/OnStepFailed, and pkg/operation passes the operation
// id to OnStepStart/OnStepValidation/OnProviderCall/OnSuspiciousContent
// (see DESIGN.md for why those two identifiers coincide in practice).
//
// Grounded on pkg/trace.Tracer's span shape (a handful of lifecycle
// hooks taking a context and plain data) and pkg/memory.InMemory's
// thread-safe in-process default implementation.
package observability

import (
	"context"
	"time"
)

// StepPrompts carries the assembled prompts passed to OnStepStart.
// Populated only by AI operations; database/validation/external-API
// operations pass the zero value.
type StepPrompts struct {
	System string
	User   string
}

// StepConfig carries the resolved model configuration passed to
// OnStepStart, after provider selection/fallback has already run.
type StepConfig struct {
	Provider string
	Model    string
	Quality  string
}

// StorageAdapter is the pluggable storage sink. Every method must be
// safe to call concurrently: many steps may be in flight at once.
// Implementations must not block significantly — the scheduler calls
// these hooks on its own goroutines.
type StorageAdapter interface {
	// OnStepStart fires once prompts are assembled and a model config
	// resolved, before the provider is dispatched.
	OnStepStart(ctx context.Context, stepID string, prompts StepPrompts, config StepConfig)
	// OnStepValidation fires after structural/subclass validation,
	// whether or not it found problems.
	OnStepValidation(ctx context.Context, stepID string, duration time.Duration, errs []string)
	// OnProviderCall fires after a provider dispatch returns
	// successfully, carrying the token counts and cost/credit
	// attribution computed from them.
	OnProviderCall(ctx context.Context, stepID string, duration time.Duration, inputTokens, outputTokens int, costUSD float64, credits int, rawResponse string)
	// OnSuspiciousContent fires when prompt sanitization flags content,
	// immediately before the operation fails with SuspiciousContentError.
	OnSuspiciousContent(ctx context.Context, stepID string, reasons []string)
	// OnStepComplete fires once a step reaches StateCompleted.
	OnStepComplete(ctx context.Context, stepID string, output map[string]any)
	// OnStepFailed fires once a step reaches StateFailed, after its
	// retry budget (if any) is exhausted.
	OnStepFailed(ctx context.Context, stepID string, err error, retriesUsed int)
}

// panicLogger is the minimal logging surface Invoke needs; satisfied
// by *obslog.Logger without this package importing internal/obslog
// (which would be an internal-from-pkg import).
type panicLogger interface {
	Error(msg string, fields ...any)
}

// Invoke calls fn, recovering any panic and reporting it to logger
// instead of letting it propagate into the scheduler: errors within
// sinks are swallowed and logged to the base logger. Callers pass
// internal/obslog.Default() as logger.
func Invoke(logger panicLogger, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("observability: storage sink panicked", "hook", hook, "recover", r)
			}
		}
	}()
	fn()
}
