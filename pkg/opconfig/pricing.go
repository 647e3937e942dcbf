package opconfig

// ModelPricing defines the cost per 1 million tokens for a model,
// keyed first by Provider and then by model string, since model
// names are not guaranteed unique across vendors.
type ModelPricing struct {
	InputCostPerMillionTokens  float64
	OutputCostPerMillionTokens float64
}

// ModelCostTable maps provider -> model -> pricing.
type ModelCostTable map[Provider]map[string]ModelPricing

// Lookup returns the pricing for (provider, model), or false if unset.
func (t ModelCostTable) Lookup(provider Provider, model string) (ModelPricing, bool) {
	byModel, ok := t[provider]
	if !ok {
		return ModelPricing{}, false
	}
	p, ok := byModel[model]
	return p, ok
}

// DefaultModelCostTable holds the built-in per-provider pricing rows
// used when an operation's config doesn't override cost.
var DefaultModelCostTable = ModelCostTable{
	ProviderOpenAI: {
		"gpt-4o":       {2.50, 10.00},
		"gpt-4o-mini":  {0.15, 0.60},
		"gpt-4.1":      {2.00, 8.00},
		"gpt-4.1-mini": {0.40, 1.60},
		"gpt-4.1-nano": {0.10, 0.40},
		"o3":           {2.00, 8.00},
		"o4-mini":      {1.10, 4.40},
	},
	ProviderAnthropic: {
		"claude-opus-4-6-20250827":   {5.00, 25.00},
		"claude-opus-4-5-20250620":   {5.00, 25.00},
		"claude-sonnet-4-5-20250929": {3.00, 15.00},
		"claude-sonnet-4-0-20250514": {3.00, 15.00},
		"claude-haiku-4-5-20251001":  {1.00, 5.00},
	},
	ProviderGemini: {
		"gemini-3-pro":     {2.00, 12.00},
		"gemini-3-flash":   {0.50, 3.00},
		"gemini-2.5-pro":   {1.25, 10.00},
		"gemini-2.5-flash": {0.15, 0.60},
		"gemini-2.0-flash": {0.10, 0.40},
	},
}

// USDPerCredit is the monetary value of a single credit, the engine's
// user-facing currency unit (see pkg/credit).
const USDPerCredit = 0.01

// OperationCreditConfig maps operation ID -> quality level -> credits
// charged. A "default" operation ID entry is required and used when an
// operation has no specific entry (see pkg/credit.Lookup).
type OperationCreditConfig map[string]map[QualityLevel]int

// DefaultOperationID is the required fallback key in OperationCreditConfig.
const DefaultOperationID = "default"

// Validate checks that the credit config carries the required default
// entry with all three quality tiers populated.
func (c OperationCreditConfig) Validate() error {
	def, ok := c[DefaultOperationID]
	if !ok {
		return errMissingDefaultCredits
	}
	for _, q := range []QualityLevel{Fast, Standard, Expert} {
		if _, ok := def[q]; !ok {
			return errIncompleteDefaultCredits
		}
	}
	return nil
}
