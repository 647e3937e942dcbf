package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/lonestarx1/opgraph/internal/config"
	"github.com/lonestarx1/opgraph/internal/runrecord"
	"github.com/lonestarx1/opgraph/pkg/engine"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/pipelines"
	"github.com/lonestarx1/opgraph/pkg/trace"
	"github.com/lonestarx1/opgraph/pkg/trace/metrics"
	"github.com/lonestarx1/opgraph/pkg/trace/otel"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func (a *App) runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "opgraph.yaml", "path to opgraph.yaml")
	input := fs.String("input", "", "JSON object input, e.g. '{\"text\":\"hello\"}' (uses the pipeline's default input if empty)")
	quality := fs.String("quality", "standard", "quality tier: fast, standard, or expert")
	dbDSN := fs.String("db", "", "Postgres DSN for pipelines with a persist step (e.g. translation)")
	otelEndpoint := fs.String("otel-endpoint", "", "OTLP HTTP endpoint to also export spans to (e.g. http://localhost:4318/v1/traces)")
	metricsOut := fs.String("metrics-out", "", "write Prometheus-format metrics for this run to the given file")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() == 0 {
		a.errf("Usage: opgraph run <pipeline-name> [flags]\n")
		return 1
	}
	pipelineName := fs.Arg(0)

	entry, err := pipelines.Get(pipelineName)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	var overrides map[string]opconfig.OperationAIConfig
	cfg, err := config.Load(*configPath)
	if err == nil {
		overrides = make(map[string]opconfig.OperationAIConfig, len(cfg.Operations))
		for id, opCfg := range cfg.Operations {
			overrides[id] = opCfg.ToOpConfig()
		}
	}
	// A missing/invalid opgraph.yaml is not fatal for run: every example
	// pipeline ships its own built-in ModeConfigs as a fallback.

	var db *sql.DB
	if *dbDSN != "" {
		db, err = sql.Open("pgx", *dbDSN)
		if err != nil {
			a.errf("Error: opening database: %v\n", err)
			return 1
		}
		defer db.Close()
	}

	p, err := entry.Build(a.registry, overrides, db)
	if err != nil {
		a.errf("Error: building pipeline %q: %v\n", pipelineName, err)
		return 1
	}

	pipelineInput := entry.DefaultInput()
	if *input != "" {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(*input), &parsed); err != nil {
			a.errf("Error: -input must be a JSON object: %v\n", err)
			return 1
		}
		pipelineInput = parsed
	}

	ec := opconfig.ExecutionContext{Quality: opconfig.QualityLevel(*quality)}
	mem := trace.NewInMemory()
	fanout := []trace.Tracer{mem}

	if *otelEndpoint != "" {
		exporter := otel.NewExporter(otel.WithEndpoint(*otelEndpoint), otel.WithServiceName("opgraph-cli"))
		defer exporter.Shutdown()
		fanout = append(fanout, exporter)
	}

	var metricsReg *metrics.Registry
	if *metricsOut != "" {
		metricsReg = metrics.NewRegistry()
		fanout = append(fanout, metrics.NewCollector(trace.Noop{}, metricsReg))
	}

	var tracer trace.Tracer = mem
	if len(fanout) > 1 {
		tracer = trace.NewFanout(fanout...)
	}

	ctx := context.Background()
	start := time.Now()
	res, err := engine.ExecutePipeline(ctx, p, pipelineInput, ec, tracer, nil, nil)
	duration := time.Since(start)

	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	rec := runrecord.FromRunResult(entry.ID, entry.Description, pipelineInput, res, start, duration, mem.Spans(), nil)

	out, _ := json.MarshalIndent(rec.Steps, "", "  ")
	a.outf("%s\n", out)
	a.outf("\nTotal cost: $%.6f | Credits: %d\n", rec.TotalRealCostUSD, rec.TotalCredits)
	if rec.HasPartialFailure {
		a.errf("\nWarning: one or more steps failed; see above for detail.\n")
	}

	if err := runrecord.Save(".", rec); err != nil {
		a.errf("Warning: failed to save run record: %v\n", err)
	} else {
		a.errf("\nRun ID: %s\n", rec.RunID)
	}

	if metricsReg != nil {
		if err := os.WriteFile(*metricsOut, []byte(metricsReg.Export()), 0o644); err != nil {
			a.errf("Warning: failed to write metrics: %v\n", err)
		}
	}

	if rec.HasPartialFailure {
		return 1
	}
	return 0
}
