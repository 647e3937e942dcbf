// Package runrecord handles persistence of opgraph pipeline run
// results. Records are stored as JSON files under .opgraph/runs/.
package runrecord

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lonestarx1/opgraph/pkg/credit"
	"github.com/lonestarx1/opgraph/pkg/engine"
	"github.com/lonestarx1/opgraph/pkg/trace"
)

const runsDir = ".opgraph/runs"

// StepSummary is one step's terminal state as recorded for a run,
// flattening engine.StepResult's tagged-variant shape into one struct
// with omitempty fields so the JSON document stays small for steps
// that didn't hit every field (a Skipped step has no Output or Error).
type StepSummary struct {
	State          engine.StepState `json:"state"`
	Output         map[string]any   `json:"output,omitempty"`
	RealCostUSD    float64          `json:"real_cost_usd,omitempty"`
	CreditsCharged int              `json:"credits_charged,omitempty"`
	ErrorKind      string           `json:"error_kind,omitempty"`
	Error          string           `json:"error,omitempty"`
	RetriesUsed    int              `json:"retries_used,omitempty"`
	SkipReason     string           `json:"skip_reason,omitempty"`
}

// Record captures the complete result of a single pipeline run, the
// unit `opgraph trace` loads and the CLI's `run` subcommand persists
// after ExecutePipeline returns.
type Record struct {
	RunID        string                 `json:"run_id"`
	PipelineID   string                 `json:"pipeline_id"`
	PipelineName string                 `json:"pipeline_name"`
	Input        map[string]any         `json:"input,omitempty"`
	Steps        map[string]StepSummary `json:"steps"`

	TotalRealCostUSD float64        `json:"total_real_cost_usd"`
	TotalCredits     int            `json:"total_credits"`
	CreditEntries    []credit.Entry `json:"credit_entries,omitempty"`

	Spans []*trace.Span `json:"spans,omitempty"`

	StartTime         time.Time     `json:"start_time"`
	Duration          time.Duration `json:"duration"`
	HasPartialFailure bool          `json:"has_partial_failure"`
	Error             string        `json:"error,omitempty"`
}

// FromRunResult builds a Record from ExecutePipeline's result,
// flattening each step's StepResult variant into a StepSummary and
// setting HasPartialFailure to true whenever any step ended Failed.
// ledger may be nil if the caller charged no credits through a
// credit.Ledger.
func FromRunResult(
	pipelineID, pipelineName string,
	input map[string]any,
	res *engine.RunResult,
	startTime time.Time,
	duration time.Duration,
	spans []*trace.Span,
	ledger *credit.Ledger,
) *Record {
	steps := make(map[string]StepSummary, len(res.StepResults))
	hasPartialFailure := false
	for id, sr := range res.StepResults {
		s := StepSummary{State: sr.State()}
		switch {
		case sr.Completed != nil:
			s.Output = sr.Completed.Output.Data
			s.RealCostUSD = sr.Completed.RealCostUSD
			s.CreditsCharged = sr.Completed.CreditsCharged
		case sr.Failed != nil:
			s.ErrorKind = string(sr.Failed.ErrorKind)
			s.Error = sr.Failed.Message
			s.RetriesUsed = sr.Failed.RetriesUsed
			hasPartialFailure = true
		case sr.Skipped != nil:
			s.SkipReason = string(sr.Skipped.Reason)
		}
		steps[id] = s
	}

	var entries []credit.Entry
	if ledger != nil {
		entries = ledger.Entries()
	}

	return &Record{
		RunID:             res.RunID,
		PipelineID:        pipelineID,
		PipelineName:      pipelineName,
		Input:             input,
		Steps:             steps,
		TotalRealCostUSD:  res.TotalRealCost,
		TotalCredits:      res.TotalCredits,
		CreditEntries:     entries,
		Spans:             spans,
		StartTime:         startTime,
		Duration:          duration,
		HasPartialFailure: hasPartialFailure,
	}
}

// Save persists a record to .opgraph/runs/<run-id>.json relative to baseDir.
func Save(baseDir string, rec *Record) error {
	if rec.RunID == "" {
		return fmt.Errorf("runrecord: run ID is required")
	}

	dir := filepath.Join(baseDir, runsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("runrecord: create dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("runrecord: marshal: %w", err)
	}

	path := filepath.Join(dir, rec.RunID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("runrecord: write: %w", err)
	}

	return nil
}

// Load reads a record from .opgraph/runs/<runID>.json relative to baseDir.
func Load(baseDir, runID string) (*Record, error) {
	path := filepath.Join(baseDir, runsDir, runID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runrecord: read %s: %w", runID, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("runrecord: unmarshal %s: %w", runID, err)
	}

	return &rec, nil
}

// List returns all run IDs sorted by descending order (newest first).
// IDs are time-sortable, so lexicographic descending order gives newest first.
func List(baseDir string) ([]string, error) {
	dir := filepath.Join(baseDir, runsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("runrecord: list: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == ".json" {
			ids = append(ids, name[:len(name)-len(ext)])
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}
