package operation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lonestarx1/opgraph/internal/obslog"
	"github.com/lonestarx1/opgraph/pkg/credit"
	"github.com/lonestarx1/opgraph/pkg/jsonrepair"
	"github.com/lonestarx1/opgraph/pkg/llm"
	"github.com/lonestarx1/opgraph/pkg/memory"
	"github.com/lonestarx1/opgraph/pkg/observability"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/selector"
	"github.com/lonestarx1/opgraph/pkg/tokencost"
)

// AIOperation runs the 9-step AI operation lifecycle against a set of
// hook functions supplied by the caller: an Option-configured
// struct with function-valued "vtable" fields instead of fixed
// instructions/tools/model fields, since each concrete operation needs
// its own prompt-assembly and result-parsing logic rather than a
// shared one.
type AIOperation struct {
	id      string
	name    string
	version string

	aiConfig     opconfig.OperationAIConfig
	costTable    opconfig.ModelCostTable
	creditTable  opconfig.OperationCreditConfig
	usdPerCredit float64

	registry  *llm.Registry
	estimator *tokencost.Estimator
	storage   observability.StorageAdapter

	requiredFields   []string
	fallbackSkeleton map[string]any

	// mem, if set, carries prior turns across runs of this operation
	// under the key memKey(input) produces: loaded and placed after the
	// system prompt and before the new user prompt, and saved back (with
	// the new turn appended) once the provider responds.
	mem    memory.Memory
	memKey func(input Input) string

	// SystemPrompt builds the system prompt for the given execution
	// context. Required.
	SystemPrompt func(ec opconfig.ExecutionContext) string
	// UserPrompt builds the user prompt from the step's input and the
	// execution context. Required.
	UserPrompt func(input Input, ec opconfig.ExecutionContext) string
	// ParseResult converts the repaired JSON value into the operation's
	// result map. If nil, the value is unmarshalled directly into
	// map[string]any.
	ParseResult func(raw json.RawMessage) (map[string]any, error)
	// ValidateAdditional runs subclass-specific checks beyond the base
	// envelope's own validation, returning any problem messages found.
	ValidateAdditional func(input Input) []string
}

// AIOption configures an AIOperation at construction time.
type AIOption func(*AIOperation)

// NewAIOperation builds an AIOperation, applying opts in order.
func NewAIOperation(id, name, version string, opts ...AIOption) *AIOperation {
	op := &AIOperation{
		id:           id,
		name:         name,
		version:      version,
		costTable:    opconfig.DefaultModelCostTable,
		usdPerCredit: opconfig.USDPerCredit,
		registry:     llm.NewRegistry(),
		estimator:    tokencost.NewEstimator(512),
		storage:      observability.NoopStorage{},
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

func WithAIConfig(cfg opconfig.OperationAIConfig) AIOption {
	return func(op *AIOperation) { op.aiConfig = cfg }
}

func WithCostTable(table opconfig.ModelCostTable) AIOption {
	return func(op *AIOperation) { op.costTable = table }
}

func WithCreditTable(table opconfig.OperationCreditConfig) AIOption {
	return func(op *AIOperation) { op.creditTable = table }
}

func WithUSDPerCredit(usdPerCredit float64) AIOption {
	return func(op *AIOperation) { op.usdPerCredit = usdPerCredit }
}

func WithRegistry(r *llm.Registry) AIOption {
	return func(op *AIOperation) { op.registry = r }
}

func WithEstimator(e *tokencost.Estimator) AIOption {
	return func(op *AIOperation) { op.estimator = e }
}

// WithStorage wires a storage sink receiving the lifecycle hooks this
// operation's own lifecycle produces (validation, prompt sanitization,
// provider dispatch). Defaults to observability.NoopStorage.
func WithStorage(s observability.StorageAdapter) AIOption {
	return func(op *AIOperation) {
		if s != nil {
			op.storage = s
		}
	}
}

// WithMemory gives the operation a conversation history: before each
// call, prior messages stored under memKey(input) are loaded and
// prepended to the assembled prompt; after a successful call, the new
// user/assistant turn is appended and saved back under the same key.
// Useful for a step that is re-entered across separate pipeline runs
// (e.g. an editor operation iterating against earlier feedback).
func WithMemory(m memory.Memory, keyFn func(input Input) string) AIOption {
	return func(op *AIOperation) {
		op.mem = m
		op.memKey = keyFn
	}
}

func WithRequiredFields(fields ...string) AIOption {
	return func(op *AIOperation) { op.requiredFields = fields }
}

func WithFallbackSkeleton(skeleton map[string]any) AIOption {
	return func(op *AIOperation) { op.fallbackSkeleton = skeleton }
}

func WithSystemPrompt(fn func(ec opconfig.ExecutionContext) string) AIOption {
	return func(op *AIOperation) { op.SystemPrompt = fn }
}

func WithUserPrompt(fn func(input Input, ec opconfig.ExecutionContext) string) AIOption {
	return func(op *AIOperation) { op.UserPrompt = fn }
}

func WithParseResult(fn func(raw json.RawMessage) (map[string]any, error)) AIOption {
	return func(op *AIOperation) { op.ParseResult = fn }
}

func WithValidateAdditional(fn func(input Input) []string) AIOption {
	return func(op *AIOperation) { op.ValidateAdditional = fn }
}

func (op *AIOperation) ID() string      { return op.id }
func (op *AIOperation) Name() string    { return op.name }
func (op *AIOperation) Version() string { return op.version }
func (op *AIOperation) Type() Kind      { return AI }

// Validate runs subclass-specific checks. The base envelope declares
// no structural schema of its own — concrete operations supply one via
// ValidateAdditional.
func (op *AIOperation) Validate(_ context.Context, input Input) []string {
	if op.ValidateAdditional == nil {
		return nil
	}
	return op.ValidateAdditional(input)
}

// assemblePrompts runs lifecycle steps 2-3: building system/user
// prompts, wrapping a step-supplied custom prompt, and running the
// sanitization heuristics. It is split out so EstimateCost can reuse
// prompt assembly without dispatching a provider call.
func (op *AIOperation) assemblePrompts(input Input, ec opconfig.ExecutionContext) (system, user string, err error) {
	if op.SystemPrompt != nil {
		system = op.SystemPrompt(ec)
	}
	if op.UserPrompt != nil {
		user = op.UserPrompt(input, ec)
	}
	if input.CustomPrompt != "" {
		user += "\n<custom_instructions>" + input.CustomPrompt + "</custom_instructions>"
	}

	var reasons []string
	reasons = append(reasons, checkSuspiciousContent(system)...)
	reasons = append(reasons, checkSuspiciousContent(user)...)
	if len(reasons) > 0 {
		return "", "", &SuspiciousContentError{OperationID: op.id, Reasons: reasons}
	}
	return system, user, nil
}

// Execute runs the full 9-step lifecycle.
func (op *AIOperation) Execute(ctx context.Context, input Input, ec opconfig.ExecutionContext) (Output, error) {
	// 1. Validation & sanitization (structural).
	validationStart := time.Now()
	msgs := op.Validate(ctx, input)
	observability.Invoke(obslog.Default(), "on_step_validation", func() {
		op.storage.OnStepValidation(ctx, op.id, time.Since(validationStart), msgs)
	})
	if len(msgs) > 0 {
		return Output{}, &ValidationError{OperationID: op.id, Messages: msgs}
	}

	// 2-3. Prompt assembly and sanitization.
	system, user, err := op.assemblePrompts(input, ec)
	if err != nil {
		if sce, ok := err.(*SuspiciousContentError); ok {
			observability.Invoke(obslog.Default(), "on_suspicious_content", func() {
				op.storage.OnSuspiciousContent(ctx, op.id, sce.Reasons)
			})
		}
		return Output{}, err
	}

	// 4. Provider selection.
	cfg, err := selector.Select(op.id, op.aiConfig, ec)
	if err != nil {
		return Output{}, &InternalError{OperationID: op.id, Err: err}
	}

	observability.Invoke(obslog.Default(), "on_step_start", func() {
		op.storage.OnStepStart(ctx, op.id,
			observability.StepPrompts{System: system, User: user},
			observability.StepConfig{Provider: string(cfg.Provider), Model: cfg.Model, Quality: string(ec.Quality)})
	})

	// 5. Provider dispatch.
	provider, err := op.registry.Get(ctx, cfg.Provider)
	if err != nil {
		return Output{}, &InternalError{OperationID: op.id, Err: err}
	}

	dispatchCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		dispatchCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var memKey string
	var priorTurns []llm.Message
	if op.mem != nil && op.memKey != nil {
		memKey = op.memKey(input)
		priorTurns, err = op.mem.Load(ctx, memKey)
		if err != nil {
			return Output{}, &InternalError{OperationID: op.id, Err: err}
		}
	}

	messages := append(append([]llm.Message{}, priorTurns...), llm.Message{Role: llm.RoleUser, Content: user})
	if system != "" {
		messages = append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, messages...)
	}

	params := llm.Params{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: &cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		JSONMode:    cfg.OutputFormat == opconfig.OutputJSON,
	}

	dispatchStart := time.Now()
	resp, err := provider.Complete(dispatchCtx, params)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, &CancelledError{OperationID: op.id, Err: ctx.Err()}
		}
		if dispatchCtx.Err() != nil {
			return Output{}, &TimeoutError{OperationID: op.id, Timeout: cfg.Timeout.String()}
		}
		return Output{}, &ProviderDispatchError{OperationID: op.id, Err: err}
	}
	dispatchDuration := time.Since(dispatchStart)

	inputTokens := resp.Usage.PromptTokens
	if inputTokens == 0 {
		inputTokens = op.estimator.Estimate(system + "\n" + user)
	}
	outputTokens := resp.Usage.CompletionTokens
	if outputTokens == 0 {
		outputTokens = op.estimator.Estimate(resp.Message.Content)
	}

	// 6. Cost attribution.
	costUSD := tokencost.Cost(op.costTable, cfg.Provider, cfg.Model, inputTokens, outputTokens)
	credits, _ := credit.Lookup(op.creditTable, op.id, ec.Quality)
	margin := tokencost.Margin(costUSD, credits, op.usdPerCredit)

	observability.Invoke(obslog.Default(), "on_provider_call", func() {
		op.storage.OnProviderCall(ctx, op.id, dispatchDuration, inputTokens, outputTokens, costUSD, credits, resp.Message.Content)
	})

	// 7-8. Response cleanup and tolerant parsing.
	repaired := jsonrepair.Repair(resp.Message.Content, op.requiredFields, op.fallbackSkeleton)
	if !repaired.Success {
		return Output{}, &ParseError{OperationID: op.id, RawResponse: resp.Message.Content, Err: repaired.OriginalError}
	}

	var data map[string]any
	if op.ParseResult != nil {
		data, err = op.ParseResult(repaired.Value)
	} else {
		err = json.Unmarshal(repaired.Value, &data)
	}
	if err != nil {
		return Output{}, &ParseError{OperationID: op.id, RawResponse: resp.Message.Content, Err: err}
	}

	if op.mem != nil && op.memKey != nil {
		turn := append(priorTurns, llm.Message{Role: llm.RoleUser, Content: user}, resp.Message)
		if saveErr := op.mem.Save(ctx, memKey, turn); saveErr != nil {
			obslog.Default().WarnCtx(ctx, "operation: failed to save conversation memory", "operation_id", op.id, "error", saveErr.Error())
		}
	}

	// 9. Emit.
	return Output{
		Data:           data,
		RealCostUSD:    costUSD,
		CreditsCharged: credits,
		Margin:         margin,
	}, nil
}

// EstimateCost predicts an AI operation's cost without dispatching a
// provider call: input tokens are estimated from the assembled
// prompts, output tokens are assumed to be the tier's MaxTokens (the
// worst case, since the actual completion length is unknown until the
// call returns).
func (op *AIOperation) EstimateCost(_ context.Context, input Input, ec opconfig.ExecutionContext) (CostEstimate, error) {
	cfg, err := selector.Select(op.id, op.aiConfig, ec)
	if err != nil {
		return CostEstimate{}, err
	}

	system, user, err := op.assemblePrompts(input, ec)
	if err != nil {
		return CostEstimate{}, err
	}

	inputTokens := op.estimator.Estimate(system + "\n" + user)
	costUSD := tokencost.Cost(op.costTable, cfg.Provider, cfg.Model, inputTokens, cfg.MaxTokens)
	credits, _ := credit.Lookup(op.creditTable, op.id, ec.Quality)

	return CostEstimate{RealCostUSD: costUSD, Credits: credits}, nil
}

var _ Operation = (*AIOperation)(nil)
