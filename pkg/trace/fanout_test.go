package trace_test

import (
	"context"
	"testing"

	"github.com/lonestarx1/opgraph/pkg/trace"
)

func TestFanoutForwardsToEveryTracer(t *testing.T) {
	a := trace.NewInMemory()
	b := trace.NewInMemory()
	f := trace.NewFanout(a, b)

	ctx, span := f.StartSpan(context.Background(), "pipeline.run")
	span.SetAttribute("engine.pipeline_id", "p1")
	f.EndSpan(span)

	_ = ctx

	if len(a.Spans()) != 1 {
		t.Fatalf("len(a.Spans()) = %d, want 1", len(a.Spans()))
	}
	if len(b.Spans()) != 1 {
		t.Fatalf("len(b.Spans()) = %d, want 1", len(b.Spans()))
	}
	if a.Spans()[0].ID != b.Spans()[0].ID {
		t.Errorf("fanout recorded different span IDs across tracers: %s vs %s", a.Spans()[0].ID, b.Spans()[0].ID)
	}
}

func TestFanoutWithNoTracersStillBuildsSpan(t *testing.T) {
	f := trace.NewFanout()
	ctx, span := f.StartSpan(context.Background(), "pipeline.step")
	if span == nil {
		t.Fatal("StartSpan returned nil span")
	}
	f.EndSpan(span)
	_ = ctx
}
