package tokencost

import "github.com/lonestarx1/opgraph/pkg/opconfig"

// Cost implements the monetary cost formula from the cost & margin
// contract: costUSD = inputTokens * r_in/1e6 + outputTokens * r_out/1e6,
// where the rates come from the model-cost table keyed by (provider,
// model). An unpriced (provider, model) pair costs 0 rather than
// erroring — an operation still completes even if its model is missing
// from the cost table, it is simply unattributed.
func Cost(table opconfig.ModelCostTable, provider opconfig.Provider, model string, inputTokens, outputTokens int) float64 {
	pricing, ok := table.Lookup(provider, model)
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000*pricing.InputCostPerMillionTokens +
		float64(outputTokens)/1_000_000*pricing.OutputCostPerMillionTokens
}

// Margin implements the margin formula:
//
//	margin = ((credits * usdPerCredit) - costUSD) / (credits * usdPerCredit) * 100
//
// Margin is 0 when the revenue side (credits * usdPerCredit) is zero,
// rather than dividing by zero — a free (0-credit) operation has no
// margin to report, not an infinite one.
func Margin(costUSD float64, credits int, usdPerCredit float64) float64 {
	revenue := float64(credits) * usdPerCredit
	if revenue == 0 {
		return 0
	}
	return (revenue - costUSD) / revenue * 100
}
