// Package narrative wires a three-step linear chain — outline, draft,
// polish — each feeding its output forward as the next step's input,
// over AI operations rather than whole agents.
package narrative

import (
	"github.com/lonestarx1/opgraph/pkg/dag"
	"github.com/lonestarx1/opgraph/pkg/engine"
	"github.com/lonestarx1/opgraph/pkg/llm"
	"github.com/lonestarx1/opgraph/pkg/memory"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/operation"
)

// ID is this pipeline's registry name.
const ID = "narrative"

// DefaultInput seeds a run when the caller supplies none.
func DefaultInput() map[string]any {
	return map[string]any{"prompt": "a lighthouse keeper who discovers the sea is rising on purpose"}
}

func defaultCredits(id string) opconfig.OperationCreditConfig {
	return opconfig.OperationCreditConfig{
		opconfig.DefaultOperationID: {opconfig.Fast: 1, opconfig.Standard: 2, opconfig.Expert: 4},
		id:                          {opconfig.Fast: 1, opconfig.Standard: 2, opconfig.Expert: 4},
	}
}

func aiConfig(overrides map[string]opconfig.OperationAIConfig, id string, maxTokens int) opconfig.OperationAIConfig {
	if cfg, ok := overrides[id]; ok {
		return cfg
	}
	return opconfig.OperationAIConfig{
		ModeConfigs: map[opconfig.QualityLevel]opconfig.ModelConfig{
			opconfig.Fast:     {Provider: opconfig.ProviderAnthropic, Model: "claude-haiku-4-5-20251001", MaxTokens: maxTokens, Temperature: 0.8},
			opconfig.Standard: {Provider: opconfig.ProviderAnthropic, Model: "claude-sonnet-4-5-20250929", MaxTokens: maxTokens, Temperature: 0.85},
			opconfig.Expert:   {Provider: opconfig.ProviderAnthropic, Model: "claude-opus-4-6-20250827", MaxTokens: maxTokens, Temperature: 0.9},
		},
	}
}

// Build constructs the narrative pipeline's dag: outline -> draft -> polish.
func Build(reg *llm.Registry, overrides map[string]opconfig.OperationAIConfig) (*dag.Pipeline, error) {
	outline := operation.NewAIOperation("outline", "Outline", "v1",
		operation.WithAIConfig(aiConfig(overrides, "outline", 512)),
		operation.WithCreditTable(defaultCredits("outline")),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("beats"),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "You outline short stories as a numbered list of beats. Respond with JSON only."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			return "Prompt: " + input.Data["prompt"].(string) + `. Return JSON: {"beats":["..."]}`
		}),
	)

	draft := operation.NewAIOperation("draft", "Draft", "v1",
		operation.WithAIConfig(aiConfig(overrides, "draft", 1536)),
		operation.WithCreditTable(defaultCredits("draft")),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("text"),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "You write short-story drafts from an outline. Respond with JSON only."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			return "Beats: write a draft following these beats. Return JSON: {\"text\":\"...\"}"
		}),
	)

	// revisions carries polish's conversation history across repeat
	// calls to the built pipeline keyed by the original prompt, so a
	// caller that re-runs polish on the same story (e.g. after manual
	// edits) gets a copyeditor aware of its own prior pass rather than
	// one starting cold each time.
	revisions := memory.NewInMemory()

	polish := operation.NewAIOperation("polish", "Polish", "v1",
		operation.WithAIConfig(aiConfig(overrides, "polish", 1536)),
		operation.WithCreditTable(defaultCredits("polish")),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("text"),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "You copyedit short-story drafts for voice and pacing. Respond with JSON only."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			return "Draft:\n" + input.Data["text"].(string) + `. Return the polished text as JSON: {"text":"..."}`
		}),
		operation.WithMemory(revisions, func(input operation.Input) string {
			prompt, _ := input.Data["prompt"].(string)
			return prompt
		}),
	)

	outlineStep := engine.NewStep("outline", nil, outline)
	draftStep := engine.NewStep("draft", []string{"outline"}, draft)
	draftStep.MapInput = func(results map[string]engine.StepResult, pipelineInput map[string]any) operation.Input {
		return operation.Input{Data: map[string]any{
			"prompt": pipelineInput["prompt"],
			"beats":  results["outline"].Completed.Output.Data["beats"],
		}}
	}
	polishStep := engine.NewStep("polish", []string{"draft"}, polish)
	polishStep.MapInput = func(results map[string]engine.StepResult, pipelineInput map[string]any) operation.Input {
		data := map[string]any{"prompt": pipelineInput["prompt"]}
		for k, v := range results["draft"].Completed.Output.Data {
			data[k] = v
		}
		return operation.Input{Data: data}
	}

	return dag.New(ID, "Narrative Chain", "Outlines, drafts, and polishes a short story", "v1",
		[]dag.Node{outlineStep, draftStep, polishStep})
}
