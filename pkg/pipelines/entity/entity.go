// Package entity wires a single structured-extraction pipeline: one AI
// operation with RequiresStructuredOutput set and a fallback skeleton,
// exercising pkg/jsonrepair end to end the way spec.md's "extraction
// that must tolerate a slightly malformed LLM response" scenario
// requires.
package entity

import (
	"encoding/json"

	"github.com/lonestarx1/opgraph/pkg/dag"
	"github.com/lonestarx1/opgraph/pkg/engine"
	"github.com/lonestarx1/opgraph/pkg/llm"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/operation"
)

// operationID is the sole step's operation ID.
const operationID = "extract-entities"

// ID is this pipeline's registry name.
const ID = "entity"

// DefaultInput seeds a run when the caller supplies none.
func DefaultInput() map[string]any {
	return map[string]any{
		"text": "Dr. Amara Osei met with the Lagos city council on Tuesday to discuss the new transit line.",
	}
}

func aiConfig(overrides map[string]opconfig.OperationAIConfig) opconfig.OperationAIConfig {
	if cfg, ok := overrides[operationID]; ok {
		return cfg
	}
	return opconfig.OperationAIConfig{
		ModeConfigs: map[opconfig.QualityLevel]opconfig.ModelConfig{
			opconfig.Fast:     {Provider: opconfig.ProviderOpenAI, Model: "gpt-4o-mini", MaxTokens: 512, OutputFormat: opconfig.OutputJSON},
			opconfig.Standard: {Provider: opconfig.ProviderOpenAI, Model: "gpt-4o", MaxTokens: 1024, OutputFormat: opconfig.OutputJSON},
			opconfig.Expert:   {Provider: opconfig.ProviderOpenAI, Model: "gpt-4o", MaxTokens: 2048, OutputFormat: opconfig.OutputJSON},
		},
		RequiresStructuredOutput: true,
	}
}

// Build constructs the entity-extraction pipeline's dag.
func Build(reg *llm.Registry, overrides map[string]opconfig.OperationAIConfig) (*dag.Pipeline, error) {
	extract := operation.NewAIOperation(operationID, "Extract Entities", "v1",
		operation.WithAIConfig(aiConfig(overrides)),
		operation.WithCreditTable(opconfig.OperationCreditConfig{
			opconfig.DefaultOperationID: {opconfig.Fast: 1, opconfig.Standard: 1, opconfig.Expert: 2},
		}),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("people", "organizations", "locations"),
		operation.WithFallbackSkeleton(map[string]any{
			"people":        []any{},
			"organizations": []any{},
			"locations":     []any{},
		}),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "Extract named entities from the given text. Respond with JSON only, no prose."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			text, _ := input.Data["text"].(string)
			return "Text:\n" + text +
				`\n\nReturn JSON: {"people":[...],"organizations":[...],"locations":[...]}`
		}),
		operation.WithParseResult(func(raw json.RawMessage) (map[string]any, error) {
			var data map[string]any
			if err := json.Unmarshal(raw, &data); err != nil {
				return nil, err
			}
			return data, nil
		}),
	)

	step := engine.NewStep(operationID, nil, extract)
	return dag.New(ID, "Entity Extraction", "Extracts people, organizations, and locations from free text", "v1",
		[]dag.Node{step})
}
