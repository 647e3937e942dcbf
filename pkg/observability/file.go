package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lonestarx1/opgraph/internal/id"
)

const eventsDir = ".opgraph/events"

// fileEvent is the on-disk JSON shape for a single hook invocation,
// mirroring runrecord.Record's "one JSON document per fact" shape
// rather than a single growing file, so a crashed run leaves whatever
// events it managed to flush instead of a half-written document.
type fileEvent struct {
	Kind   EventKind `json:"kind"`
	StepID string    `json:"step_id"`
	Time   time.Time `json:"time"`

	Prompts *StepPrompts `json:"prompts,omitempty"`
	Config  *StepConfig  `json:"config,omitempty"`

	DurationMS int64 `json:"duration_ms,omitempty"`

	ValidationErrors []string `json:"validation_errors,omitempty"`

	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
	Credits      int     `json:"credits,omitempty"`
	RawResponse  string  `json:"raw_response,omitempty"`

	SuspiciousReasons []string `json:"suspicious_reasons,omitempty"`

	Output map[string]any `json:"output,omitempty"`

	Error       string `json:"error,omitempty"`
	RetriesUsed int    `json:"retries_used,omitempty"`
}

// FileStorage persists every hook invocation as its own JSON file under
// <baseDir>/.opgraph/events/<runID>/, grounded on internal/runrecord's
// os.WriteFile persistence shape. Safe for concurrent use: writes of
// distinct files need no coordination beyond MkdirAll's own safety, but
// a mutex still serializes directory creation on first use.
type FileStorage struct {
	baseDir string
	runID   string

	mu       sync.Mutex
	dirReady bool
}

// NewFileStorage returns a FileStorage that writes events for one run
// under baseDir/.opgraph/events/runID/.
func NewFileStorage(baseDir, runID string) *FileStorage {
	return &FileStorage{baseDir: baseDir, runID: runID}
}

func (f *FileStorage) dir() (string, error) {
	dir := filepath.Join(f.baseDir, eventsDir, f.runID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirReady {
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("observability: create dir: %w", err)
	}
	f.dirReady = true
	return dir, nil
}

func (f *FileStorage) write(e fileEvent) {
	dir, err := f.dir()
	if err != nil {
		return
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return
	}
	name := fmt.Sprintf("%s-%s-%s.json", id.New(), e.Kind, e.StepID)
	_ = os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func (f *FileStorage) OnStepStart(_ context.Context, stepID string, prompts StepPrompts, config StepConfig) {
	f.write(fileEvent{Kind: EventStepStart, StepID: stepID, Time: time.Now(), Prompts: &prompts, Config: &config})
}

func (f *FileStorage) OnStepValidation(_ context.Context, stepID string, duration time.Duration, errs []string) {
	f.write(fileEvent{Kind: EventStepValidation, StepID: stepID, Time: time.Now(), DurationMS: duration.Milliseconds(), ValidationErrors: errs})
}

func (f *FileStorage) OnProviderCall(_ context.Context, stepID string, duration time.Duration, inputTokens, outputTokens int, costUSD float64, credits int, rawResponse string) {
	f.write(fileEvent{
		Kind: EventProviderCall, StepID: stepID, Time: time.Now(), DurationMS: duration.Milliseconds(),
		InputTokens: inputTokens, OutputTokens: outputTokens, CostUSD: costUSD, Credits: credits, RawResponse: rawResponse,
	})
}

func (f *FileStorage) OnSuspiciousContent(_ context.Context, stepID string, reasons []string) {
	f.write(fileEvent{Kind: EventSuspiciousContent, StepID: stepID, Time: time.Now(), SuspiciousReasons: reasons})
}

func (f *FileStorage) OnStepComplete(_ context.Context, stepID string, output map[string]any) {
	f.write(fileEvent{Kind: EventStepComplete, StepID: stepID, Time: time.Now(), Output: output})
}

func (f *FileStorage) OnStepFailed(_ context.Context, stepID string, err error, retriesUsed int) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	f.write(fileEvent{Kind: EventStepFailed, StepID: stepID, Time: time.Now(), Error: msg, RetriesUsed: retriesUsed})
}

var _ StorageAdapter = (*FileStorage)(nil)
