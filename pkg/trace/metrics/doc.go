// Package metrics provides Prometheus-compatible metrics for opgraph pipelines.
//
// A Registry holds counters, gauges, and histograms. The Export method
// returns all metrics in Prometheus exposition format, suitable for
// scraping by Prometheus or compatible systems.
//
// The Collector wraps any trace.Tracer and automatically populates
// metrics from opgraph trace spans — pipeline runs and step executions,
// including their cost and credit totals, are tracked without manual
// instrumentation.
//
// Usage:
//
//	reg := metrics.NewRegistry()
//	collector := metrics.NewCollector(innerTracer, reg)
//
//	// Pass collector as engine.ExecutePipeline's tracer argument.
//	res, err := engine.ExecutePipeline(ctx, p, input, ec, collector, storage, nil)
//
//	// Export metrics for Prometheus
//	http.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
//	    w.Header().Set("Content-Type", "text/plain; version=0.0.4")
//	    fmt.Fprint(w, reg.Export())
//	})
package metrics
