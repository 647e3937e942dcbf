package narrative_test

import (
	"context"
	"testing"

	"github.com/lonestarx1/opgraph/pkg/engine"
	"github.com/lonestarx1/opgraph/pkg/llm"
	"github.com/lonestarx1/opgraph/pkg/llm/mock"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/pipelines/narrative"
)

func TestBuildAndExecuteNarrativePipeline(t *testing.T) {
	reg := llm.NewRegistry()
	reg.Register(opconfig.ProviderAnthropic, mock.New(mock.WithResponses(
		&llm.Response{
			Message: llm.NewAssistantMessage(`{"beats":["keeper notices the tide log drifting","keeper finds a note from decades ago","the sea answers back"]}`),
			Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 10},
		},
		&llm.Response{
			Message: llm.NewAssistantMessage(`{"text":"The lighthouse keeper had kept the tide log for thirty years."}`),
			Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 10},
		},
		&llm.Response{
			Message: llm.NewAssistantMessage(`{"text":"For thirty years, the keeper had logged the tide by hand."}`),
			Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 10},
		},
	)))

	p, err := narrative.Build(reg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res, err := engine.ExecutePipeline(context.Background(), p, narrative.DefaultInput(),
		opconfig.ExecutionContext{Quality: opconfig.Standard}, nil, nil, nil)
	if err != nil {
		t.Fatalf("ExecutePipeline: %v", err)
	}

	for _, id := range []string{"outline", "draft", "polish"} {
		sr := res.StepResults[id]
		if sr.State() != engine.StateCompleted {
			t.Fatalf("step %q state = %v, want Completed (result: %+v)", id, sr.State(), sr)
		}
	}

	polished, _ := res.StepResults["polish"].Completed.Output.Data["text"].(string)
	if polished == "" {
		t.Error("polish step produced empty text")
	}
	draftText, _ := res.StepResults["draft"].Completed.Output.Data["text"].(string)
	if polished == draftText {
		t.Error("polish output should differ from the draft it threaded in, given the mock responses")
	}
}
