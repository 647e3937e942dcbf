package operation

import (
	"context"

	"github.com/lonestarx1/opgraph/pkg/opconfig"
)

// ValidationOperation runs a pure check against its input and emits a
// pass/fail result with no provider dispatch and no cost attribution —
// the cheapest of the four operation kinds, typically used as a gate
// step ahead of more expensive AI/Database work in a pipeline.
type ValidationOperation struct {
	id      string
	name    string
	version string

	// Check runs the validation logic, returning the operation's result
	// data and a list of problem messages (empty if the input is
	// valid). An error return is reserved for unexpected failures (a
	// schema file that failed to load), not for validation failures
	// themselves. Required.
	Check func(ctx context.Context, input Input, ec opconfig.ExecutionContext) (data map[string]any, problems []string, err error)
}

// ValidationOption configures a ValidationOperation at construction time.
type ValidationOption func(*ValidationOperation)

// NewValidationOperation builds a ValidationOperation.
func NewValidationOperation(id, name, version string, opts ...ValidationOption) *ValidationOperation {
	op := &ValidationOperation{id: id, name: name, version: version}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

func WithCheck(fn func(ctx context.Context, input Input, ec opconfig.ExecutionContext) (map[string]any, []string, error)) ValidationOption {
	return func(op *ValidationOperation) { op.Check = fn }
}

func (op *ValidationOperation) ID() string      { return op.id }
func (op *ValidationOperation) Name() string    { return op.name }
func (op *ValidationOperation) Version() string { return op.version }
func (op *ValidationOperation) Type() Kind      { return Validation }

// Validate is always empty for a ValidationOperation — its entire job
// is running Check during Execute, where problems become a
// ValidationError rather than a pre-flight Validate() result.
func (op *ValidationOperation) Validate(_ context.Context, _ Input) []string {
	return nil
}

func (op *ValidationOperation) Execute(ctx context.Context, input Input, ec opconfig.ExecutionContext) (Output, error) {
	if op.Check == nil {
		return Output{}, &InternalError{OperationID: op.id, Err: errNoCheckHook}
	}

	data, problems, err := op.Check(ctx, input, ec)
	if err != nil {
		return Output{}, &InternalError{OperationID: op.id, Err: err}
	}
	if len(problems) > 0 {
		return Output{}, &ValidationError{OperationID: op.id, Messages: problems}
	}

	return Output{Data: data}, nil
}

// EstimateCost is always free for a ValidationOperation.
func (op *ValidationOperation) EstimateCost(_ context.Context, _ Input, _ opconfig.ExecutionContext) (CostEstimate, error) {
	return CostEstimate{}, nil
}

var _ Operation = (*ValidationOperation)(nil)
