package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/lonestarx1/opgraph/internal/runrecord"
)

func (a *App) runCost(args []string) int {
	fs := flag.NewFlagSet("cost", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	jsonOutput := fs.Bool("json", false, "output as JSON")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	// No run-id: list all runs with cost.
	if fs.NArg() == 0 {
		return a.listRunCosts(*jsonOutput)
	}

	runID := fs.Arg(0)
	rec, err := runrecord.Load(".", runID)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	if *jsonOutput {
		return a.costJSON(rec)
	}

	a.renderCostTable(rec)
	return 0
}

type runCostSummary struct {
	RunID        string  `json:"run_id"`
	PipelineID   string  `json:"pipeline_id"`
	TotalCostUSD float64 `json:"total_real_cost_usd"`
	Credits      int     `json:"total_credits"`
}

func (a *App) listRunCosts(jsonOut bool) int {
	ids, err := runrecord.List(".")
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	if len(ids) == 0 {
		a.outf("No runs found. Run 'opgraph run <pipeline>' first.\n")
		return 0
	}

	var summaries []runCostSummary
	for _, id := range ids {
		rec, err := runrecord.Load(".", id)
		if err != nil {
			continue
		}
		summaries = append(summaries, runCostSummary{
			RunID:        rec.RunID,
			PipelineID:   rec.PipelineID,
			TotalCostUSD: rec.TotalRealCostUSD,
			Credits:      rec.TotalCredits,
		})
	}

	if jsonOut {
		data, _ := json.MarshalIndent(summaries, "", "  ")
		a.outf("%s\n", data)
		return 0
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN ID\tPIPELINE\tCOST\tCREDITS")
	for _, s := range summaries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t$%.6f\t%d\n", s.RunID, s.PipelineID, s.TotalCostUSD, s.Credits)
	}
	_ = w.Flush()
	return 0
}

func (a *App) costJSON(rec *runrecord.Record) int {
	data, err := json.MarshalIndent(rec.Steps, "", "  ")
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	a.outf("%s\n", data)
	return 0
}

func (a *App) renderCostTable(rec *runrecord.Record) {
	a.outf("Run: %s (pipeline: %s)\n\n", rec.RunID, rec.PipelineID)

	names := make([]string, 0, len(rec.Steps))
	for name := range rec.Steps {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STEP\tSTATE\tCOST\tCREDITS")
	for _, name := range names {
		s := rec.Steps[name]
		_, _ = fmt.Fprintf(w, "%s\t%s\t$%.6f\t%d\n", name, s.State, s.RealCostUSD, s.CreditsCharged)
	}
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 50)+"\t\t\t")
	_, _ = fmt.Fprintf(w, "TOTAL\t\t$%.6f\t%d\n", rec.TotalRealCostUSD, rec.TotalCredits)
	_ = w.Flush()
}
