// database.go registers pgx/v5 as the database/sql driver DatabaseOperation
// dispatches through, grounded on bartekus-stagecraft's usage pattern in
// the example pack (driver registered via blank import, transactions run
// against the stdlib database/sql.Tx type rather than pgx's own pool API,
// so DatabaseOperation's Tx hook stays portable across any database/sql
// driver a caller wires in instead).
package operation

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lonestarx1/opgraph/pkg/credit"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/tokencost"
)

// DatabaseOperation runs the same envelope as AIOperation but skips
// prompt assembly, sanitization, and provider dispatch entirely: its
// work happens inside a transaction supplied by the caller's Tx hook,
// and its cost attribution has no token rates to apply — only the
// credit charge, if the operation's id has an entry in the credit table.
type DatabaseOperation struct {
	id      string
	name    string
	version string

	db           *sql.DB
	creditTable  opconfig.OperationCreditConfig
	usdPerCredit float64

	// Tx runs the operation's work inside tx, returning the result data
	// and the number of rows affected. Required.
	Tx func(ctx context.Context, tx *sql.Tx, input Input, ec opconfig.ExecutionContext) (data map[string]any, affectedRows int, err error)
	// ValidateAdditional runs subclass-specific checks before the
	// transaction is opened.
	ValidateAdditional func(input Input) []string
}

// DBOption configures a DatabaseOperation at construction time.
type DBOption func(*DatabaseOperation)

// NewDatabaseOperation builds a DatabaseOperation against db.
func NewDatabaseOperation(id, name, version string, db *sql.DB, opts ...DBOption) *DatabaseOperation {
	op := &DatabaseOperation{
		id:           id,
		name:         name,
		version:      version,
		db:           db,
		usdPerCredit: opconfig.USDPerCredit,
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

func WithDBCreditTable(table opconfig.OperationCreditConfig) DBOption {
	return func(op *DatabaseOperation) { op.creditTable = table }
}

func WithDBValidateAdditional(fn func(input Input) []string) DBOption {
	return func(op *DatabaseOperation) { op.ValidateAdditional = fn }
}

func (op *DatabaseOperation) ID() string      { return op.id }
func (op *DatabaseOperation) Name() string    { return op.name }
func (op *DatabaseOperation) Version() string { return op.version }
func (op *DatabaseOperation) Type() Kind      { return Database }

func (op *DatabaseOperation) Validate(_ context.Context, input Input) []string {
	if op.ValidateAdditional == nil {
		return nil
	}
	return op.ValidateAdditional(input)
}

// Execute opens a transaction, runs Tx, and commits on success or
// rolls back on failure.
func (op *DatabaseOperation) Execute(ctx context.Context, input Input, ec opconfig.ExecutionContext) (Output, error) {
	if msgs := op.Validate(ctx, input); len(msgs) > 0 {
		return Output{}, &ValidationError{OperationID: op.id, Messages: msgs}
	}

	tx, err := op.db.BeginTx(ctx, nil)
	if err != nil {
		return Output{}, &InternalError{OperationID: op.id, Err: err}
	}

	data, affectedRows, err := op.Tx(ctx, tx, input, ec)
	if err != nil {
		_ = tx.Rollback()
		return Output{}, &InternalError{OperationID: op.id, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return Output{}, &InternalError{OperationID: op.id, Err: err}
	}

	credits, _ := credit.Lookup(op.creditTable, op.id, ec.Quality)
	margin := tokencost.Margin(0, credits, op.usdPerCredit)

	return Output{
		Data:           data,
		CreditsCharged: credits,
		Margin:         margin,
		AffectedRows:   affectedRows,
	}, nil
}

// EstimateCost reports the credit charge only — database operations
// have no token rate to project a realCostUSD from.
func (op *DatabaseOperation) EstimateCost(_ context.Context, _ Input, ec opconfig.ExecutionContext) (CostEstimate, error) {
	credits, _ := credit.Lookup(op.creditTable, op.id, ec.Quality)
	return CostEstimate{Credits: credits}, nil
}

var _ Operation = (*DatabaseOperation)(nil)
