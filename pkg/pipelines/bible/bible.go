// Package bible wires a five-step world/character/faction/lore/map
// generation pipeline with heavy fan-out: "world" has no dependencies,
// "characters" and "factions" both run off it in the same dag level,
// "lore" merges both into a final document, and "map_render" calls
// out to a non-LLM tool to turn the world's geography into a rendered
// map description.
package bible

import (
	"context"
	"encoding/json"

	"github.com/lonestarx1/opgraph/pkg/dag"
	"github.com/lonestarx1/opgraph/pkg/engine"
	"github.com/lonestarx1/opgraph/pkg/llm"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/operation"
	"github.com/lonestarx1/opgraph/pkg/tool"
)

// ID is this pipeline's registry name.
const ID = "bible"

// DefaultInput seeds a run when the caller supplies none.
func DefaultInput() map[string]any {
	return map[string]any{"setting": "a frontier mining colony on a tidally-locked moon"}
}

func defaultCredits(id string) opconfig.OperationCreditConfig {
	return opconfig.OperationCreditConfig{
		opconfig.DefaultOperationID: {opconfig.Fast: 1, opconfig.Standard: 2, opconfig.Expert: 5},
		id:                          {opconfig.Fast: 1, opconfig.Standard: 2, opconfig.Expert: 5},
	}
}

func aiConfig(overrides map[string]opconfig.OperationAIConfig, id string, provider opconfig.Provider, model string) opconfig.OperationAIConfig {
	if cfg, ok := overrides[id]; ok {
		return cfg
	}
	return opconfig.OperationAIConfig{
		ModeConfigs: map[opconfig.QualityLevel]opconfig.ModelConfig{
			opconfig.Fast:     {Provider: provider, Model: model, MaxTokens: 512, Temperature: 0.7},
			opconfig.Standard: {Provider: provider, Model: model, MaxTokens: 1024, Temperature: 0.8},
			opconfig.Expert:   {Provider: provider, Model: model, MaxTokens: 2048, Temperature: 0.9},
		},
	}
}

// mapRenderTool simulates an external map-rendering service: it turns
// a geography description into a stub tile-layout string. A real
// deployment would swap this for an HTTP client hitting the rendering
// service; the Tool interface is what lets Build swap it without
// touching the dag.
type mapRenderTool struct{}

func (mapRenderTool) Name() string        { return "map_render" }
func (mapRenderTool) Description() string { return "renders a world's geography into a map layout" }
func (mapRenderTool) Schema() tool.Schema {
	return tool.Schema{
		Type:       "object",
		Properties: map[string]*tool.Schema{"geography": {Type: "string"}},
		Required:   []string{"geography"},
	}
}

func (mapRenderTool) Execute(_ context.Context, input json.RawMessage) (string, error) {
	var req struct {
		Geography string `json:"geography"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return "", err
	}
	layout := map[string]any{
		"tile_count": len(req.Geography)/40 + 1,
		"legend":     "auto-generated from geography description",
	}
	out, err := json.Marshal(layout)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Build constructs the bible pipeline's dag, wiring each operation's
// AI config from overrides (keyed by operation ID, as loaded from
// opgraph.yaml) when present, falling back to a sane built-in default
// otherwise.
func Build(reg *llm.Registry, overrides map[string]opconfig.OperationAIConfig) (*dag.Pipeline, error) {
	world := operation.NewAIOperation("world", "Generate World", "v1",
		operation.WithAIConfig(aiConfig(overrides, "world", opconfig.ProviderAnthropic, "claude-sonnet-4-5-20250929")),
		operation.WithCreditTable(defaultCredits("world")),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("name", "geography", "history"),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "You build consistent fictional settings. Respond with JSON only."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			return "Invent a world for this setting: " + input.Data["setting"].(string) +
				`. Return JSON: {"name":"...","geography":"...","history":"..."}`
		}),
	)

	characters := operation.NewAIOperation("characters", "Generate Characters", "v1",
		operation.WithAIConfig(aiConfig(overrides, "characters", opconfig.ProviderOpenAI, "gpt-4o")),
		operation.WithCreditTable(defaultCredits("characters")),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("cast"),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "You invent memorable characters consistent with a fictional world. Respond with JSON only."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			return "World: " + input.Data["name"].(string) + " — " + input.Data["history"].(string) +
				`. Invent a cast of 3 characters. Return JSON: {"cast":[{"name":"...","role":"..."}]}`
		}),
	)

	factions := operation.NewAIOperation("factions", "Generate Factions", "v1",
		operation.WithAIConfig(aiConfig(overrides, "factions", opconfig.ProviderGemini, "gemini-2.5-flash")),
		operation.WithCreditTable(defaultCredits("factions")),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("factions"),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "You invent political factions consistent with a fictional world. Respond with JSON only."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			return "World: " + input.Data["name"].(string) + " — " + input.Data["geography"].(string) +
				`. Invent 2 factions. Return JSON: {"factions":[{"name":"...","goal":"..."}]}`
		}),
	)

	lore := operation.NewAIOperation("lore", "Merge Lore", "v1",
		operation.WithAIConfig(aiConfig(overrides, "lore", opconfig.ProviderAnthropic, "claude-sonnet-4-5-20250929")),
		operation.WithCreditTable(defaultCredits("lore")),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("summary"),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "You merge worldbuilding fragments into one coherent lore summary. Respond with JSON only."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			return "Merge these fragments into a lore summary. Return JSON: {\"summary\":\"...\"}"
		}),
	)

	worldStep := engine.NewStep("world", nil, world)
	charactersStep := engine.NewStep("characters", []string{"world"}, characters)
	charactersStep.MapInput = func(results map[string]engine.StepResult, _ map[string]any) operation.Input {
		return operation.Input{Data: results["world"].Completed.Output.Data}
	}
	factionsStep := engine.NewStep("factions", []string{"world"}, factions)
	factionsStep.MapInput = func(results map[string]engine.StepResult, _ map[string]any) operation.Input {
		return operation.Input{Data: results["world"].Completed.Output.Data}
	}
	loreStep := engine.NewStep("lore", []string{"characters", "factions"}, lore)
	loreStep.MapInput = func(results map[string]engine.StepResult, _ map[string]any) operation.Input {
		return operation.Input{Data: map[string]any{
			"cast":     results["characters"].Completed.Output.Data["cast"],
			"factions": results["factions"].Completed.Output.Data["factions"],
		}}
	}

	tools := tool.NewRegistry()
	_ = tools.Register(mapRenderTool{})

	mapRender := operation.NewExternalAPIOperation("map_render", "Render World Map", "v1",
		operation.WithExternalCreditTable(defaultCredits("map_render")),
		operation.WithCostSchedule(operation.CostSchedule{
			opconfig.Fast: 0.01, opconfig.Standard: 0.02, opconfig.Expert: 0.05,
		}),
		operation.WithCall(func(ctx context.Context, input operation.Input, _ opconfig.ExecutionContext) (map[string]any, int, error) {
			t, err := tools.Get("map_render")
			if err != nil {
				return nil, 0, err
			}
			reqBody, err := json.Marshal(map[string]any{"geography": input.Data["geography"]})
			if err != nil {
				return nil, 0, err
			}
			raw, err := t.Execute(ctx, reqBody)
			if err != nil {
				return nil, 0, err
			}
			var data map[string]any
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				return nil, 0, err
			}
			return data, len(raw), nil
		}),
	)
	mapStep := engine.NewStep("map_render", []string{"world"}, mapRender)
	mapStep.MapInput = func(results map[string]engine.StepResult, _ map[string]any) operation.Input {
		return operation.Input{Data: results["world"].Completed.Output.Data}
	}

	return dag.New(ID, "World Bible", "Generates a world, its cast, its factions, a lore summary, and a rendered map", "v1",
		[]dag.Node{worldStep, charactersStep, factionsStep, loreStep, mapStep})
}
