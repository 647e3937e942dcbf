package templates

func init() {
	register(&Template{
		Name:        "single",
		Description: "Single AI operation wired into a one-node pipeline",
		Files: []File{
			{Path: "opgraph.yaml", Content: singleConfig},
			{Path: "main.go", Content: singleMain},
			{Path: "Makefile", Content: singleMakefile},
			{Path: "README.md", Content: singleReadme},
		},
	})
}

const singleConfig = `version: "1"
operations:
  summarize:
    mode_configs:
      standard:
        provider: openai
        model: gpt-4o-mini
        temperature: 0.3
        max_tokens: 1024
        timeout: 60s
    requires_structured_output: true
`

const singleMain = `package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/lonestarx1/opgraph/pkg/dag"
	"github.com/lonestarx1/opgraph/pkg/engine"
	"github.com/lonestarx1/opgraph/pkg/llm"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/operation"
)

func main() {
	reg := llm.NewRegistry()

	summarize := operation.NewAIOperation("summarize", "Summarize", "v1",
		operation.WithAIConfig(opconfig.OperationAIConfig{
			ModeConfigs: map[opconfig.QualityLevel]opconfig.ModelConfig{
				opconfig.Standard: {Provider: opconfig.ProviderOpenAI, Model: "gpt-4o-mini", MaxTokens: 1024, OutputFormat: opconfig.OutputJSON},
			},
			RequiresStructuredOutput: true,
		}),
		operation.WithRegistry(reg),
		operation.WithRequiredFields("summary"),
		operation.WithFallbackSkeleton(map[string]any{"summary": ""}),
		operation.WithSystemPrompt(func(_ opconfig.ExecutionContext) string {
			return "Summarize the given text in two sentences. Respond with JSON only."
		}),
		operation.WithUserPrompt(func(input operation.Input, _ opconfig.ExecutionContext) string {
			text, _ := input.Data["text"].(string)
			return "Text:\n" + text + ". Return JSON: {\"summary\":\"...\"}"
		}),
	)

	p, err := dag.New("summarize", "Summarize", "Summarizes free text", "v1", []dag.Node{
		engine.NewStep("summarize", nil, summarize),
	})
	if err != nil {
		log.Fatal(err)
	}

	res, err := engine.ExecutePipeline(context.Background(), p,
		map[string]any{"text": "Replace this with the text you want summarized."},
		opconfig.ExecutionContext{Quality: opconfig.Standard}, nil, nil, nil)
	if err != nil {
		log.Fatal(err)
	}

	sr := res.StepResults["summarize"]
	if sr.Failed != nil {
		log.Fatalf("summarize failed: %s", sr.Failed.Message)
	}

	out, _ := json.MarshalIndent(sr.Completed.Output.Data, "", "  ")
	fmt.Println(string(out))
	fmt.Printf("\nCost: $%.6f | Credits: %d\n", sr.Completed.RealCostUSD, sr.Completed.CreditsCharged)
}
`

const singleMakefile = `.PHONY: build run clean

build:
	go build -o bin/{{.Name}} .

run: build
	./bin/{{.Name}}

clean:
	rm -rf bin/
`

const singleReadme = `# {{.Name}}

An opgraph project with a single AI operation wired as a one-node pipeline.

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
