package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/lonestarx1/opgraph/pkg/trace"
)

func TestCollectorDelegatesSpans(t *testing.T) {
	inner := trace.NewInMemory()
	reg := NewRegistry()
	c := NewCollector(inner, reg)

	ctx, span := c.StartSpan(context.Background(), "test.span")
	if span == nil {
		t.Fatal("span is nil")
	}
	if ctx == nil {
		t.Fatal("ctx is nil")
	}
	c.EndSpan(span)

	spans := inner.Spans()
	if len(spans) != 1 {
		t.Fatalf("inner spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "test.span" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "test.span")
	}
}

func TestCollectorPipelineRunMetrics(t *testing.T) {
	inner := trace.NewInMemory()
	reg := NewRegistry()
	c := NewCollector(inner, reg)

	_, span := c.StartSpan(context.Background(), "pipeline.run")
	span.SetAttribute("engine.pipeline_id", "narrative")
	span.SetAttribute("engine.total_cost_usd", "0.05")
	span.SetAttribute("engine.total_credits", "4")
	span.StartTime = time.Now().Add(-2 * time.Second)
	c.EndSpan(span)

	runs := c.pipelineRuns.Value(map[string]string{"pipeline": "narrative", "status": "ok"})
	if runs != 1 {
		t.Errorf("pipeline runs = %f, want 1", runs)
	}

	count := c.pipelineDuration.Count(map[string]string{"pipeline": "narrative"})
	if count != 1 {
		t.Errorf("pipeline duration count = %d, want 1", count)
	}

	cost := c.pipelineCostUSD.Value(map[string]string{"pipeline": "narrative"})
	if cost != 0.05 {
		t.Errorf("cost = %f, want 0.05", cost)
	}

	credits := c.pipelineCredits.Value(map[string]string{"pipeline": "narrative"})
	if credits != 4 {
		t.Errorf("credits = %f, want 4", credits)
	}
}

func TestCollectorPipelineRunError(t *testing.T) {
	inner := trace.NewInMemory()
	reg := NewRegistry()
	c := NewCollector(inner, reg)

	_, span := c.StartSpan(context.Background(), "pipeline.run")
	span.SetAttribute("engine.pipeline_id", "narrative")
	span.Status = trace.StatusError
	c.EndSpan(span)

	errRuns := c.pipelineRuns.Value(map[string]string{"pipeline": "narrative", "status": "error"})
	if errRuns != 1 {
		t.Errorf("error pipeline runs = %f, want 1", errRuns)
	}
}

func TestCollectorStepMetrics(t *testing.T) {
	inner := trace.NewInMemory()
	reg := NewRegistry()
	c := NewCollector(inner, reg)

	_, span := c.StartSpan(context.Background(), "pipeline.step")
	span.SetAttribute("engine.step_id", "draft")
	span.SetAttribute("engine.step.cost_usd", "0.002")
	span.StartTime = time.Now().Add(-500 * time.Millisecond)
	c.EndSpan(span)

	runs := c.stepRuns.Value(map[string]string{"step": "draft", "status": "ok"})
	if runs != 1 {
		t.Errorf("step runs = %f, want 1", runs)
	}

	count := c.stepDuration.Count(map[string]string{"step": "draft"})
	if count != 1 {
		t.Errorf("step duration count = %d, want 1", count)
	}

	cost := c.stepCostUSD.Value(map[string]string{"step": "draft"})
	if cost != 0.002 {
		t.Errorf("step cost = %f, want 0.002", cost)
	}
}

func TestCollectorStepError(t *testing.T) {
	inner := trace.NewInMemory()
	reg := NewRegistry()
	c := NewCollector(inner, reg)

	_, span := c.StartSpan(context.Background(), "pipeline.step")
	span.SetAttribute("engine.step_id", "draft")
	span.Status = trace.StatusError
	c.EndSpan(span)

	errRuns := c.stepRuns.Value(map[string]string{"step": "draft", "status": "error"})
	if errRuns != 1 {
		t.Errorf("error step runs = %f, want 1", errRuns)
	}
}

func TestCollectorUnknownSpanName(t *testing.T) {
	inner := trace.NewInMemory()
	reg := NewRegistry()
	c := NewCollector(inner, reg)

	_, span := c.StartSpan(context.Background(), "unknown.operation")
	c.EndSpan(span)

	// Should not panic, no metrics recorded.
	out := reg.Export()
	if out != "" {
		t.Errorf("expected empty export for unknown span, got: %q", out)
	}
}

func TestCollectorMetricsViaExport(t *testing.T) {
	inner := trace.NewInMemory()
	reg := NewRegistry()
	c := NewCollector(inner, reg)

	_, span := c.StartSpan(context.Background(), "pipeline.run")
	span.SetAttribute("engine.pipeline_id", "test")
	c.EndSpan(span)

	out := reg.Export()
	if out == "" {
		t.Error("expected non-empty export after recording metrics")
	}
}
