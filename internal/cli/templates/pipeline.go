package templates

func init() {
	register(&Template{
		Name:        "chain",
		Description: "Two-step AI chain threading state from draft to edit",
		Files: []File{
			{Path: "opgraph.yaml", Content: pipelineConfig},
			{Path: "main.go", Content: pipelineMain},
			{Path: "Makefile", Content: pipelineMakefile},
			{Path: "README.md", Content: pipelineReadme},
		},
	})
}

const pipelineConfig = `version: "1"
operations:
  draft:
    mode_configs:
      standard:
        provider: openai
        model: gpt-4o-mini
        temperature: 0.7
        max_tokens: 2048
        timeout: 60s
  edit:
    mode_configs:
      standard:
        provider: openai
        model: gpt-4o-mini
        temperature: 0.3
        max_tokens: 2048
        timeout: 60s
`

const pipelineMain = `package main

import (
	"context"
	"fmt"
	"log"

	"github.com/lonestarx1/opgraph/pkg/dag"
	"github.com/lonestarx1/opgraph/pkg/engine"
	"github.com/lonestarx1/opgraph/pkg/llm"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/operation"
)

func aiConfig(model string, maxTokens int) opconfig.OperationAIConfig {
	return opconfig.OperationAIConfig{
		ModeConfigs: map[opconfig.QualityLevel]opconfig.ModelConfig{
			opconfig.Standard: {Provider: opconfig.ProviderOpenAI, Model: model, MaxTokens: maxTokens},
		},
	}
}

func main() {
	reg := llm.NewRegistry()

	draft := operation.NewAIOperation("draft", "Draft", "v1",
		operation.WithAIConfig(aiConfig("gpt-4o-mini", 2048)),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("text"),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "Write a first draft based on the given topic. Respond with JSON only."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			topic, _ := input.Data["topic"].(string)
			return "Topic: " + topic + ". Return JSON: {\"text\":\"...\"}"
		}),
	)

	edit := operation.NewAIOperation("edit", "Edit", "v1",
		operation.WithAIConfig(aiConfig("gpt-4o-mini", 2048)),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("text"),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "Improve the given draft for clarity, grammar, and structure. Respond with JSON only."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			text, _ := input.Data["text"].(string)
			return "Draft:\n" + text + ". Return the polished version as JSON: {\"text\":\"...\"}"
		}),
	)

	draftStep := engine.NewStep("draft", nil, draft)
	editStep := engine.NewStep("edit", []string{"draft"}, edit)
	editStep.MapInput = func(results map[string]engine.StepResult, _ map[string]any) operation.Input {
		return operation.Input{Data: results["draft"].Completed.Output.Data}
	}

	p, err := dag.New("content-chain", "Content Chain", "Drafts then edits a piece of writing", "v1",
		[]dag.Node{draftStep, editStep})
	if err != nil {
		log.Fatal(err)
	}

	res, err := engine.ExecutePipeline(context.Background(), p,
		map[string]any{"topic": "Go concurrency patterns"},
		opconfig.ExecutionContext{Quality: opconfig.Standard}, nil, nil, nil)
	if err != nil {
		log.Fatal(err)
	}

	edited := res.StepResults["edit"]
	if edited.Failed != nil {
		log.Fatalf("edit failed: %s", edited.Failed.Message)
	}

	fmt.Println(edited.Completed.Output.Data["text"])
	fmt.Printf("\nTotal cost: $%.6f | Credits: %d\n", res.TotalRealCost, res.TotalCredits)
}
`

const pipelineMakefile = `.PHONY: build run clean

build:
	go build -o bin/{{.Name}} .

run: build
	./bin/{{.Name}}

clean:
	rm -rf bin/
`

const pipelineReadme = `# {{.Name}}

An opgraph project with a two-step chain: draft, then edit.

## Setup

` + "```" + `bash
go mod tidy
export OPENAI_API_KEY=sk-...
` + "```" + `

## Run

` + "```" + `bash
go run main.go

# The opgraph CLI runs only its built-in example pipelines
# (see 'opgraph list'), not this project's main.go.
` + "```" + `
`
