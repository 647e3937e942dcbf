// Package operation defines the operation kernel: the Operation
// interface every pipeline step runs against, and the shared envelope
// (validate, assemble, dispatch, attribute cost, parse, emit) that its
// four kinds — AI, Database, Validation, ExternalAPI — implement.
//
// Operations that emit an `"error": true` field inside their parsed
// output are passed through as Completed, not promoted to Failed — a
// deliberate choice (see DESIGN.md) that leaves room for a future
// caller-supplied promotion hook without breaking existing pipelines.
package operation

import (
	"context"

	"github.com/lonestarx1/opgraph/pkg/opconfig"
)

// Kind classifies what an operation does, independent of which
// pipeline step wraps it.
type Kind string

const (
	AI          Kind = "ai"
	Database    Kind = "database"
	Validation  Kind = "validation"
	ExternalAPI Kind = "external_api"
)

// Input is what a pipeline step hands an operation: the mapped data
// from upstream results (or the raw pipeline input, if the step has no
// mapInput), plus an optional per-step custom prompt appended to the
// assembled user prompt.
type Input struct {
	Data         map[string]any
	CustomPrompt string
}

// Output is what an operation returns on success. Data carries the
// operation's parsed/structured result; the remaining fields are the
// cost-accounting metadata every operation kind attaches, populated
// according to which fields that kind's lifecycle produces (a
// ValidationOperation, for instance, leaves the cost fields zero).
type Output struct {
	Data           map[string]any
	RealCostUSD    float64
	CreditsCharged int
	Margin         float64

	// AffectedRows is populated by DatabaseOperation only.
	AffectedRows int
	// ResponseSize is populated by ExternalAPI operations only — the
	// engine does not interpret the payload beyond recording its size.
	ResponseSize int
}

// CostEstimate is a pre-flight estimate of what executing an operation
// would cost, without actually dispatching it.
type CostEstimate struct {
	RealCostUSD float64
	Credits     int
}

// Operation is implemented by every step in a pipeline. Validate
// returns a list of human-readable problems (empty if none); Execute
// runs the operation's full lifecycle; EstimateCost predicts cost
// without side effects, for pre-flight budgeting.
type Operation interface {
	ID() string
	Name() string
	Version() string
	Type() Kind

	Validate(ctx context.Context, input Input) []string
	Execute(ctx context.Context, input Input, ec opconfig.ExecutionContext) (Output, error)
	EstimateCost(ctx context.Context, input Input, ec opconfig.ExecutionContext) (CostEstimate, error)
}
