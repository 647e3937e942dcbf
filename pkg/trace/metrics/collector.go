package metrics

import (
	"context"
	"strconv"

	"github.com/lonestarx1/opgraph/pkg/trace"
)

// Collector wraps a trace.Tracer and automatically populates metrics
// from opgraph trace spans. Use it as a drop-in replacement for any
// tracer to gain automatic metrics collection.
type Collector struct {
	inner trace.Tracer
	reg   *Registry

	pipelineRuns     *Counter
	pipelineDuration *Histogram
	pipelineCostUSD  *Counter
	pipelineCredits  *Counter
	stepRuns         *Counter
	stepDuration     *Histogram
	stepCostUSD      *Counter
}

// NewCollector creates a Collector that delegates span management to
// inner and records metrics in reg.
func NewCollector(inner trace.Tracer, reg *Registry) *Collector {
	return &Collector{
		inner:            inner,
		reg:              reg,
		pipelineRuns:     reg.Counter("opgraph_pipeline_runs_total", "Total number of pipeline runs"),
		pipelineDuration: reg.Histogram("opgraph_pipeline_run_duration_seconds", "Pipeline run duration in seconds"),
		pipelineCostUSD:  reg.Counter("opgraph_pipeline_cost_usd_total", "Total real cost in USD across pipeline runs"),
		pipelineCredits:  reg.Counter("opgraph_pipeline_credits_total", "Total credits charged across pipeline runs"),
		stepRuns:         reg.Counter("opgraph_step_runs_total", "Total number of step executions"),
		stepDuration:     reg.Histogram("opgraph_step_duration_seconds", "Step duration in seconds"),
		stepCostUSD:      reg.Counter("opgraph_step_cost_usd_total", "Total real cost in USD per step"),
	}
}

// StartSpan delegates to the inner tracer.
func (c *Collector) StartSpan(ctx context.Context, name string) (context.Context, *trace.Span) {
	return c.inner.StartSpan(ctx, name)
}

// EndSpan delegates to the inner tracer and records metrics.
func (c *Collector) EndSpan(span *trace.Span) {
	c.inner.EndSpan(span)
	c.record(span)
}

func (c *Collector) record(span *trace.Span) {
	duration := span.EndTime.Sub(span.StartTime).Seconds()
	status := "ok"
	if span.Status == trace.StatusError {
		status = "error"
	}

	switch span.Name {
	case "pipeline.run":
		pipelineID := span.Attributes["engine.pipeline_id"]
		c.pipelineRuns.Inc(map[string]string{"pipeline": pipelineID, "status": status})
		c.pipelineDuration.Observe(duration, map[string]string{"pipeline": pipelineID})
		if costStr, ok := span.Attributes["engine.total_cost_usd"]; ok {
			if cost, err := strconv.ParseFloat(costStr, 64); err == nil && cost > 0 {
				c.pipelineCostUSD.Add(cost, map[string]string{"pipeline": pipelineID})
			}
		}
		if creditsStr, ok := span.Attributes["engine.total_credits"]; ok {
			if credits, err := strconv.Atoi(creditsStr); err == nil && credits > 0 {
				c.pipelineCredits.Add(float64(credits), map[string]string{"pipeline": pipelineID})
			}
		}

	case "pipeline.step":
		stepID := span.Attributes["engine.step_id"]
		c.stepRuns.Inc(map[string]string{"step": stepID, "status": status})
		c.stepDuration.Observe(duration, map[string]string{"step": stepID})
		if costStr, ok := span.Attributes["engine.step.cost_usd"]; ok {
			if cost, err := strconv.ParseFloat(costStr, 64); err == nil && cost > 0 {
				c.stepCostUSD.Add(cost, map[string]string{"step": stepID})
			}
		}
	}
}
