package engine

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/lonestarx1/opgraph/internal/id"
	"github.com/lonestarx1/opgraph/internal/obslog"
	"github.com/lonestarx1/opgraph/pkg/dag"
	"github.com/lonestarx1/opgraph/pkg/observability"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/operation"
	"github.com/lonestarx1/opgraph/pkg/trace"
)

// defaultRetryableKinds is applied when a step's (or the pipeline's)
// RetryConfig.RetryableErrorTypes is empty.
var defaultRetryableKinds = []string{string(operation.FailureProvider), string(operation.FailureTimeout)}

// ChangedStep names the single step whose state changed in the update
// that carries it, letting a caller render an incremental diff instead
// of re-scanning every step state on every callback.
type ChangedStep struct {
	ID    string
	State StepState
}

// PipelineStateUpdate is emitted, synchronously and in increasing
// Progress order, once per step-state transition.
type PipelineStateUpdate struct {
	Progress    int // 0-100, terminal step count / total step count
	StepStates  map[string]StepState
	LastChanged *ChangedStep
}

// ProgressBus is a plain callback invoked synchronously from the
// scheduler on every state transition. The other progress sink, the
// StorageAdapter, lives in pkg/observability; ProgressBus stays here
// since it is defined directly in terms of PipelineStateUpdate and
// pkg/observability must not import pkg/engine.
type ProgressBus func(PipelineStateUpdate)

// RunResult is ExecutePipeline's return value: the terminal state and
// result of every step, plus run totals and a rolled-up Summary.
type RunResult struct {
	RunID         string
	StepResults   map[string]StepResult
	TotalRealCost float64
	TotalCredits  int
	Summary       Summary
}

// Summary tallies step outcomes across the run, the external contract
// a caller can inspect without walking StepResults itself.
type Summary struct {
	Successful        int
	Failed            int
	Skipped           int
	Total             int
	HasPartialFailure bool
}

// summarize computes Summary from the run's final step states.
func summarize(results map[string]StepResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.State() {
		case StateCompleted:
			s.Successful++
		case StateFailed:
			s.Failed++
		case StateSkipped:
			s.Skipped++
		}
	}
	s.HasPartialFailure = s.Failed > 0
	return s
}

// ExecutePipeline runs every step of p to completion, dispatching each
// dag level concurrently and respecting per-step conditions, input
// mapping, retry policy, and timeouts. onUpdate, if non-nil, is called
// synchronously after each step's terminal state is recorded; it must
// not block significantly since it runs on the scheduler's goroutine.
// storage, if nil, defaults to observability.NoopStorage; its
// OnStepComplete/OnStepFailed hooks fire once per step with the
// engine's own view of retries used, complementing the per-attempt
// hooks pkg/operation's AIOperation fires on its own.
func ExecutePipeline(
	ctx context.Context,
	p *dag.Pipeline,
	pipelineInput map[string]any,
	ec opconfig.ExecutionContext,
	tracer trace.Tracer,
	storage observability.StorageAdapter,
	onUpdate ProgressBus,
) (*RunResult, error) {
	if tracer == nil {
		tracer = trace.Noop{}
	}
	if storage == nil {
		storage = observability.NoopStorage{}
	}

	runID := id.New()
	ctx, runSpan := tracer.StartSpan(ctx, "pipeline.run")
	runSpan.SetAttribute("engine.pipeline_id", p.ID())
	runSpan.SetAttribute("engine.run_id", runID)
	defer tracer.EndSpan(runSpan)

	levels := p.GetPipelineStructure()
	total := 0
	for _, lv := range levels {
		total += len(lv.Steps)
	}

	var mu sync.Mutex
	states := make(map[string]StepState, total)
	results := make(map[string]StepResult, total)
	for _, lv := range levels {
		for _, sid := range lv.Steps {
			states[sid] = StatePending
		}
	}

	emit := func(changedID string) {
		if onUpdate == nil {
			return
		}
		done := 0
		snapshot := make(map[string]StepState, len(states))
		for sid, st := range states {
			snapshot[sid] = st
			if st == StateCompleted || st == StateFailed || st == StateSkipped {
				done++
			}
		}
		progress := 0
		if total > 0 {
			progress = done * 100 / total
		}
		onUpdate(PipelineStateUpdate{
			Progress:    progress,
			StepStates:  snapshot,
			LastChanged: &ChangedStep{ID: changedID, State: states[changedID]},
		})
	}

	var totalRealCost float64
	var totalCredits int

	cancelled := false

	for levelIdx, lv := range levels {
		if err := ctx.Err(); err != nil {
			runSpan.SetError(err)
			skipRemaining(levels[levelIdx:], states, results, &mu, emit)
			cancelled = true
			break
		}

		type stepResponse struct {
			id     string
			result StepResult
		}
		respCh := make(chan stepResponse, len(lv.Steps))

		for _, sid := range lv.Steps {
			node, _ := p.Step(sid)
			step := node.(*Step)

			mu.Lock()
			states[sid] = StateRunning
			mu.Unlock()
			emit(sid)

			go func(step *Step) {
				res := runStep(ctx, step, results, pipelineInput, ec, tracer, storage, &mu)
				respCh <- stepResponse{id: step.StepID(), result: res}
			}(step)
		}

		for range lv.Steps {
			resp := <-respCh

			mu.Lock()
			results[resp.id] = resp.result
			states[resp.id] = resp.result.State()
			if c := resp.result.Completed; c != nil {
				totalRealCost += c.RealCostUSD
				totalCredits += c.CreditsCharged
			}
			mu.Unlock()

			emit(resp.id)
		}
	}

	if cancelled {
		runSpan.SetAttribute("engine.cancelled", "true")
	}
	runSpan.SetAttribute("engine.total_cost_usd", strconv.FormatFloat(totalRealCost, 'f', 6, 64))
	runSpan.SetAttribute("engine.total_credits", strconv.Itoa(totalCredits))

	return &RunResult{
		RunID:         runID,
		StepResults:   results,
		TotalRealCost: totalRealCost,
		TotalCredits:  totalCredits,
		Summary:       summarize(results),
	}, nil
}

// skipRemaining marks every step in remainingLevels that never reached
// a terminal state as Skipped with SkipReasonCancelled: dispatch has
// stopped, so nothing still Pending will ever run. Steps already
// Running, Completed, Failed, or Skipped by the time cancellation was
// observed are left untouched — the engine never overwrites a result
// an in-flight step already settled into (a step that itself lost the
// race with a cancelled context returns its own FailureInternal/
// CancelledError, which this sweep must not reclassify as Skipped).
func skipRemaining(remainingLevels []dag.Level, states map[string]StepState, results map[string]StepResult, mu *sync.Mutex, emit func(string)) {
	mu.Lock()
	var toSkip []string
	for _, lv := range remainingLevels {
		for _, sid := range lv.Steps {
			if states[sid] == StatePending {
				toSkip = append(toSkip, sid)
			}
		}
	}
	for _, sid := range toSkip {
		results[sid] = StepResult{Skipped: &SkippedResult{Reason: SkipReasonCancelled}}
		states[sid] = StateSkipped
	}
	mu.Unlock()

	for _, sid := range toSkip {
		emit(sid)
	}
}

// runStep decides whether step runs (cascade-skip, condition), then
// executes it with its retry policy, returning its terminal StepResult.
// results and mu guard read access to prior steps' results; runStep
// only reads from results (never writes), so it takes mu only for that
// read, never holding it across the (possibly slow) operation call.
func runStep(
	ctx context.Context,
	step *Step,
	results map[string]StepResult,
	pipelineInput map[string]any,
	ec opconfig.ExecutionContext,
	tracer trace.Tracer,
	storage observability.StorageAdapter,
	mu *sync.Mutex,
) StepResult {
	mu.Lock()
	snapshot := make(map[string]StepResult, len(results))
	for sid, r := range results {
		snapshot[sid] = r
	}
	mu.Unlock()

	var failedDeps []string
	for _, dep := range step.StepDependencies() {
		if r, ok := snapshot[dep]; ok && r.State() != StateCompleted {
			failedDeps = append(failedDeps, dep)
		}
	}
	if len(failedDeps) > 0 {
		sort.Strings(failedDeps)
		return StepResult{Skipped: &SkippedResult{Reason: SkipReasonFailedDependency, FailedDependencies: failedDeps}}
	}

	if step.Condition != nil && !step.Condition(snapshot) {
		return StepResult{Skipped: &SkippedResult{Reason: SkipReasonCondition}}
	}

	ctx, span := tracer.StartSpan(ctx, "pipeline.step")
	span.SetAttribute("engine.step_id", step.StepID())
	defer tracer.EndSpan(span)

	mapInput := step.MapInput
	if mapInput == nil {
		mapInput = defaultMapInput
	}
	input := mapInput(snapshot, pipelineInput)
	if step.CustomPrompt != nil {
		input.CustomPrompt = step.CustomPrompt(snapshot, pipelineInput)
	}

	stepEC := ec
	if step.Quality != "" {
		stepEC.Quality = step.Quality
	}

	retry := ec.PipelineRetryConfig
	if step.Retry != nil {
		retry = *step.Retry
	}
	maxAttempts := retry.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := retry.RetryableErrorTypes
	if len(retryable) == 0 {
		retryable = defaultRetryableKinds
	}

	stepCtx := ctx
	var cancel context.CancelFunc
	if step.Timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}
	stepEC = stepEC.WithContext(stepCtx)

	var lastErr error
	var out operation.Output
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		out, lastErr = step.Operation.Execute(stepCtx, input, stepEC)
		if lastErr == nil {
			break
		}

		kind := operation.ClassifyError(lastErr)
		if !isRetryableKind(kind, retryable) || attempt == maxAttempts {
			break
		}

		delay := retryDelay(retry, attempt)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-stepCtx.Done():
				lastErr = stepCtx.Err()
				goto done
			}
		}
	}
done:

	if lastErr != nil {
		span.SetError(lastErr)
		retriesUsed := attempts - 1
		observability.Invoke(obslog.Default(), "on_step_failed", func() {
			storage.OnStepFailed(ctx, step.StepID(), lastErr, retriesUsed)
		})
		return StepResult{Failed: &FailedResult{
			ErrorKind:   operation.ClassifyError(lastErr),
			Message:     lastErr.Error(),
			RetriesUsed: retriesUsed,
		}}
	}

	span.SetAttribute("engine.step.cost_usd", strconv.FormatFloat(out.RealCostUSD, 'f', 6, 64))
	observability.Invoke(obslog.Default(), "on_step_complete", func() {
		storage.OnStepComplete(ctx, step.StepID(), out.Data)
	})
	return StepResult{Completed: &CompletedResult{
		Output:         out,
		RealCostUSD:    out.RealCostUSD,
		CreditsCharged: out.CreditsCharged,
	}}
}

// isRetryableKind reports whether kind appears in allowed, both
// compared as their FailureKind string value (RetryableErrorTypes is
// declared as []string so it can be configured from YAML).
func isRetryableKind(kind operation.FailureKind, allowed []string) bool {
	if !kind.Retryable() {
		return false
	}
	for _, a := range allowed {
		if operation.FailureKind(a) == kind {
			return true
		}
	}
	return false
}

// retryDelay computes the wait before the next attempt, doubling each
// time when ExponentialBackoff is set, as a plain opt-in knob rather
// than a separate backoff package.
func retryDelay(r opconfig.RetryConfig, attempt int) time.Duration {
	if r.RetryDelay <= 0 {
		return 0
	}
	if !r.ExponentialBackoff {
		return r.RetryDelay
	}
	d := r.RetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
