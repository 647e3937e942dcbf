package operation

import (
	"context"

	"github.com/lonestarx1/opgraph/pkg/credit"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/tokencost"
)

// CostSchedule is a fixed USD cost per quality tier, used by
// ExternalAPIOperation in place of per-token rates — an image
// generation call, for instance, has a flat cost regardless of how
// much text went into its prompt.
type CostSchedule map[opconfig.QualityLevel]float64

// ExternalAPIOperation behaves like an AIOperation in shape — it
// validates, calls out, and charges credits — but does not charge
// tokens and does not interpret its payload beyond recording its size.
type ExternalAPIOperation struct {
	id      string
	name    string
	version string

	costSchedule CostSchedule
	creditTable  opconfig.OperationCreditConfig
	usdPerCredit float64

	// Call invokes the external API and returns the operation's result
	// data plus the response payload's size in bytes. Required.
	Call func(ctx context.Context, input Input, ec opconfig.ExecutionContext) (data map[string]any, responseSize int, err error)
	// ValidateAdditional runs subclass-specific checks before Call.
	ValidateAdditional func(input Input) []string
}

// ExternalAPIOption configures an ExternalAPIOperation at construction time.
type ExternalAPIOption func(*ExternalAPIOperation)

// NewExternalAPIOperation builds an ExternalAPIOperation.
func NewExternalAPIOperation(id, name, version string, opts ...ExternalAPIOption) *ExternalAPIOperation {
	op := &ExternalAPIOperation{
		id:           id,
		name:         name,
		version:      version,
		usdPerCredit: opconfig.USDPerCredit,
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

func WithCostSchedule(schedule CostSchedule) ExternalAPIOption {
	return func(op *ExternalAPIOperation) { op.costSchedule = schedule }
}

func WithExternalCreditTable(table opconfig.OperationCreditConfig) ExternalAPIOption {
	return func(op *ExternalAPIOperation) { op.creditTable = table }
}

func WithCall(fn func(ctx context.Context, input Input, ec opconfig.ExecutionContext) (map[string]any, int, error)) ExternalAPIOption {
	return func(op *ExternalAPIOperation) { op.Call = fn }
}

func WithExternalValidateAdditional(fn func(input Input) []string) ExternalAPIOption {
	return func(op *ExternalAPIOperation) { op.ValidateAdditional = fn }
}

func (op *ExternalAPIOperation) ID() string      { return op.id }
func (op *ExternalAPIOperation) Name() string    { return op.name }
func (op *ExternalAPIOperation) Version() string { return op.version }
func (op *ExternalAPIOperation) Type() Kind      { return ExternalAPI }

func (op *ExternalAPIOperation) Validate(_ context.Context, input Input) []string {
	if op.ValidateAdditional == nil {
		return nil
	}
	return op.ValidateAdditional(input)
}

func (op *ExternalAPIOperation) Execute(ctx context.Context, input Input, ec opconfig.ExecutionContext) (Output, error) {
	if msgs := op.Validate(ctx, input); len(msgs) > 0 {
		return Output{}, &ValidationError{OperationID: op.id, Messages: msgs}
	}
	if op.Call == nil {
		return Output{}, &InternalError{OperationID: op.id, Err: errNoCallHook}
	}

	data, responseSize, err := op.Call(ctx, input, ec)
	if err != nil {
		return Output{}, err
	}

	costUSD := op.costSchedule[ec.Quality]
	credits, _ := credit.Lookup(op.creditTable, op.id, ec.Quality)
	margin := tokencost.Margin(costUSD, credits, op.usdPerCredit)

	return Output{
		Data:           data,
		RealCostUSD:    costUSD,
		CreditsCharged: credits,
		Margin:         margin,
		ResponseSize:   responseSize,
	}, nil
}

func (op *ExternalAPIOperation) EstimateCost(_ context.Context, _ Input, ec opconfig.ExecutionContext) (CostEstimate, error) {
	credits, _ := credit.Lookup(op.creditTable, op.id, ec.Quality)
	return CostEstimate{RealCostUSD: op.costSchedule[ec.Quality], Credits: credits}, nil
}

var _ Operation = (*ExternalAPIOperation)(nil)
