// Package engine is the streaming pipeline scheduler: it takes a
// validated *dag.Pipeline, dispatches steps wave by wave following the
// dependency structure dag already computed, and emits a
// PipelineStateUpdate after every state change so a caller can render
// live progress. Dispatch is wave-based (channel fan-in, mutex-guarded
// shared state) with per-step retry/timeout, restructured around dag's
// precomputed levels: since dag rejects cycles at construction time,
// the engine never needs dynamic ready-set recomputation — a step's
// dependencies are always fully resolved by the time its level is
// reached.
package engine

import (
	"time"

	"github.com/lonestarx1/opgraph/pkg/dag"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/operation"
)

// Step is a single unit of pipeline work: an operation plus the glue
// that decides whether it runs, what input it receives, and how its
// retry/timeout/quality behavior differs from the pipeline default.
type Step struct {
	id           string
	dependencies []string

	// Operation is the unit of work this step performs.
	Operation operation.Operation

	// Condition, if set, gates execution on the results gathered so
	// far (this step's completed dependencies and everything run
	// before it). A false result skips the step with SkipReasonCondition.
	Condition func(results map[string]StepResult) bool

	// MapInput builds this step's operation input from prior results
	// and the pipeline's overall input. If nil, the step receives the
	// pipeline input's Data verbatim (see defaultMapInput).
	MapInput func(results map[string]StepResult, pipelineInput map[string]any) operation.Input

	// CustomPrompt, if set, overrides Input.CustomPrompt after MapInput
	// has run — grounded on spec.md's per-step prompt override.
	CustomPrompt func(results map[string]StepResult, pipelineInput map[string]any) string

	// Quality overrides the pipeline's ExecutionContext.Quality for
	// this step alone. The zero value means "use the pipeline's".
	Quality opconfig.QualityLevel

	// Retry overrides the pipeline's default retry policy for this
	// step alone. The zero value means "use the pipeline's".
	Retry *opconfig.RetryConfig

	// Timeout, if positive, bounds this step's run, all retry attempts
	// included; there is no pipeline-wide default. Zero means no
	// step-specific timeout is applied (the operation's own
	// provider-tier timeout, if any, still applies).
	Timeout time.Duration
}

// NewStep constructs a Step participating in id's dependency graph.
func NewStep(id string, dependencies []string, op operation.Operation) *Step {
	return &Step{id: id, dependencies: dependencies, Operation: op}
}

// StepID implements dag.Node.
func (s *Step) StepID() string { return s.id }

// StepDependencies implements dag.Node.
func (s *Step) StepDependencies() []string { return s.dependencies }

var _ dag.Node = (*Step)(nil)

// StepState is the lifecycle state of a step within one pipeline run.
type StepState string

const (
	StatePending   StepState = "pending"
	StateReady     StepState = "ready"
	StateRunning   StepState = "running"
	StateCompleted StepState = "completed"
	StateFailed    StepState = "failed"
	StateSkipped   StepState = "skipped"
)

// SkipReason explains why a step was skipped instead of run.
type SkipReason string

const (
	// SkipReasonCondition means the step's Condition returned false.
	SkipReasonCondition SkipReason = "condition_false"
	// SkipReasonFailedDependency means one or more dependencies failed
	// or were themselves skipped.
	SkipReasonFailedDependency SkipReason = "failed_dependency"
	// SkipReasonCancelled means the run's context was cancelled before
	// this step was dispatched; it never ran.
	SkipReasonCancelled SkipReason = "cancelled"
)

// StepResult is the outcome of one step's execution, exactly one of
// Completed, Failed, or Skipped is non-nil.
type StepResult struct {
	Completed *CompletedResult
	Failed    *FailedResult
	Skipped   *SkippedResult
}

// State reports the StepState this result corresponds to.
func (r StepResult) State() StepState {
	switch {
	case r.Completed != nil:
		return StateCompleted
	case r.Failed != nil:
		return StateFailed
	case r.Skipped != nil:
		return StateSkipped
	default:
		return StatePending
	}
}

// CompletedResult carries a successfully executed step's output.
type CompletedResult struct {
	Output         operation.Output
	RealCostUSD    float64
	CreditsCharged int
}

// FailedResult carries a step's terminal failure, after its retry
// budget (if any) was exhausted.
type FailedResult struct {
	ErrorKind   operation.FailureKind
	Message     string
	RetriesUsed int
}

// SkippedResult carries why a step never ran.
type SkippedResult struct {
	Reason             SkipReason
	FailedDependencies []string
}

// defaultMapInput passes the pipeline's raw input through unchanged,
// mirroring graph.Run's "start nodes use the initial input" rule.
func defaultMapInput(_ map[string]StepResult, pipelineInput map[string]any) operation.Input {
	return operation.Input{Data: pipelineInput}
}
