package trace

import "context"

// Fanout forwards every span to multiple Tracers. It is the way to
// combine an in-process recorder (InMemory, for building a run record)
// with an out-of-process one (otel.Exporter) without the engine having
// to know more than one tracer is listening.
//
// Fanout builds the span itself (via NewSpan) rather than delegating
// StartSpan to each inner tracer, since delegating would hand back a
// different *Span per tracer and EndSpan only ever sees one of them.
// One consequence: otel.Exporter derives its OTLP trace ID during its
// own StartSpan, which Fanout never calls, so spans exported through a
// Fanout carry an empty trace ID. Use otel.Exporter directly, not
// wrapped in a Fanout, when trace ID correlation across an OTLP
// backend matters more than also keeping a local run record.
type Fanout struct {
	tracers []Tracer
}

// NewFanout creates a Tracer that forwards every span to each of tracers.
func NewFanout(tracers ...Tracer) *Fanout {
	return &Fanout{tracers: tracers}
}

// StartSpan begins a new span linked to any parent span in the context.
func (f *Fanout) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	return NewSpan(ctx, name)
}

// EndSpan completes the span and hands it to every inner tracer in order.
func (f *Fanout) EndSpan(span *Span) {
	for _, t := range f.tracers {
		t.EndSpan(span)
	}
}
