// Package translation wires a two-step pipeline: an AI operation
// translates text, then a DatabaseOperation persists the translated
// record inside a transaction, exercising pkg/llm + pkg/dag +
// pkg/engine + a real DatabaseOperation together, per SPEC_FULL.md.
package translation

import (
	"context"
	"database/sql"

	"github.com/lonestarx1/opgraph/pkg/dag"
	"github.com/lonestarx1/opgraph/pkg/engine"
	"github.com/lonestarx1/opgraph/pkg/llm"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/operation"
)

// ID is this pipeline's registry name.
const ID = "translation"

// DefaultInput seeds a run when the caller supplies none.
func DefaultInput() map[string]any {
	return map[string]any{
		"text":            "The harvest festival begins at dusk.",
		"target_language": "French",
	}
}

func aiConfig(overrides map[string]opconfig.OperationAIConfig) opconfig.OperationAIConfig {
	if cfg, ok := overrides["translate"]; ok {
		return cfg
	}
	return opconfig.OperationAIConfig{
		ModeConfigs: map[opconfig.QualityLevel]opconfig.ModelConfig{
			opconfig.Fast:     {Provider: opconfig.ProviderGemini, Model: "gemini-2.5-flash", MaxTokens: 512},
			opconfig.Standard: {Provider: opconfig.ProviderGemini, Model: "gemini-3-flash", MaxTokens: 512},
			opconfig.Expert:   {Provider: opconfig.ProviderGemini, Model: "gemini-3-pro", MaxTokens: 1024},
		},
	}
}

// Build constructs the translation pipeline's dag: translate -> persist.
// db must be a live connection — the persist step opens a transaction
// against it on every run. Callers without a database (e.g. a dry-run
// CLI invocation) should not call Build; ErrNoDatabase documents why.
func Build(reg *llm.Registry, overrides map[string]opconfig.OperationAIConfig, db *sql.DB) (*dag.Pipeline, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}

	translate := operation.NewAIOperation("translate", "Translate", "v1",
		operation.WithAIConfig(aiConfig(overrides)),
		operation.WithCreditTable(opconfig.OperationCreditConfig{
			opconfig.DefaultOperationID: {opconfig.Fast: 1, opconfig.Standard: 1, opconfig.Expert: 2},
		}),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("translated"),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "You translate text faithfully, preserving tone. Respond with JSON only."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			text, _ := input.Data["text"].(string)
			lang, _ := input.Data["target_language"].(string)
			return "Translate to " + lang + ": " + text + `. Return JSON: {"translated":"..."}`
		}),
	)

	persist := operation.NewDatabaseOperation("persist", "Persist Translation", "v1", db,
		operation.WithDBCreditTable(opconfig.OperationCreditConfig{
			opconfig.DefaultOperationID: {opconfig.Fast: 1, opconfig.Standard: 1, opconfig.Expert: 1},
		}),
	)
	persist.Tx = func(ctx context.Context, tx *sql.Tx, input operation.Input, _ opconfig.ExecutionContext) (map[string]any, int, error) {
		translated, _ := input.Data["translated"].(string)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO translations (translated_text) VALUES ($1)`, translated)
		if err != nil {
			return nil, 0, err
		}
		rows, _ := res.RowsAffected()
		return map[string]any{"translated": translated}, int(rows), nil
	}

	translateStep := engine.NewStep("translate", nil, translate)
	persistStep := engine.NewStep("persist", []string{"translate"}, persist)
	persistStep.MapInput = func(results map[string]engine.StepResult, _ map[string]any) operation.Input {
		return operation.Input{Data: results["translate"].Completed.Output.Data}
	}

	return dag.New(ID, "Translation", "Translates text and persists the result", "v1",
		[]dag.Node{translateStep, persistStep})
}
