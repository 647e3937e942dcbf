package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lonestarx1/opgraph/pkg/observability"
)

func TestInMemoryStorageRecordsEventsPerStep(t *testing.T) {
	s := observability.NewInMemoryStorage()
	ctx := context.Background()

	s.OnStepStart(ctx, "a", observability.StepPrompts{System: "sys", User: "user"}, observability.StepConfig{Provider: "openai", Model: "gpt-4o-mini"})
	s.OnProviderCall(ctx, "a", 5*time.Millisecond, 10, 20, 0.001, 2, "raw")
	s.OnStepComplete(ctx, "a", map[string]any{"ok": true})
	s.OnStepFailed(ctx, "b", errors.New("boom"), 2)

	evs := s.Events("a")
	if len(evs) != 3 {
		t.Fatalf("Events(a) len = %d, want 3", len(evs))
	}
	if evs[0].Kind != observability.EventStepStart {
		t.Errorf("evs[0].Kind = %v, want EventStepStart", evs[0].Kind)
	}
	if evs[1].Kind != observability.EventProviderCall || evs[1].CostUSD != 0.001 {
		t.Errorf("evs[1] = %+v", evs[1])
	}

	all := s.All()
	if len(all) != 4 {
		t.Fatalf("All() len = %d, want 4", len(all))
	}

	s.Clear()
	if len(s.All()) != 0 {
		t.Error("Clear() did not empty the store")
	}
}

func TestInMemoryStorageEventsCopyIsIndependent(t *testing.T) {
	s := observability.NewInMemoryStorage()
	s.OnStepComplete(context.Background(), "a", map[string]any{"x": 1})

	evs := s.Events("a")
	evs[0].StepID = "mutated"

	if s.Events("a")[0].StepID != "a" {
		t.Error("Events() returned a slice sharing backing storage with internal state")
	}
}

func TestNoopStorageDiscardsEverything(t *testing.T) {
	var s observability.StorageAdapter = observability.NoopStorage{}
	ctx := context.Background()
	s.OnStepStart(ctx, "a", observability.StepPrompts{}, observability.StepConfig{})
	s.OnStepValidation(ctx, "a", time.Millisecond, []string{"x"})
	s.OnProviderCall(ctx, "a", time.Millisecond, 1, 1, 0.1, 1, "raw")
	s.OnSuspiciousContent(ctx, "a", []string{"reason"})
	s.OnStepComplete(ctx, "a", nil)
	s.OnStepFailed(ctx, "a", errors.New("x"), 0)
}

func TestFileStorageWritesOneJSONFilePerEvent(t *testing.T) {
	dir := t.TempDir()
	s := observability.NewFileStorage(dir, "run-1")
	ctx := context.Background()

	s.OnStepStart(ctx, "a", observability.StepPrompts{System: "sys"}, observability.StepConfig{Provider: "openai"})
	s.OnStepComplete(ctx, "a", map[string]any{"summary": "done"})

	eventsDir := filepath.Join(dir, ".opgraph", "events", "run-1")
	entries, err := os.ReadDir(eventsDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("wrote %d files, want 2", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(eventsDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("event file is not valid JSON: %v", err)
	}
	if decoded["step_id"] != "a" {
		t.Errorf("step_id = %v, want a", decoded["step_id"])
	}
}

func TestInvokeRecoversPanic(t *testing.T) {
	logger := &stubLogger{}
	called := false

	observability.Invoke(logger, "on_step_complete", func() {
		called = true
		panic("sink blew up")
	})

	if !called {
		t.Fatal("Invoke did not call fn")
	}
	if !logger.called {
		t.Error("Invoke did not report the panic to the logger")
	}
}

func TestInvokeRunsCleanlyWithoutPanic(t *testing.T) {
	ran := false
	observability.Invoke(nil, "on_step_complete", func() { ran = true })
	if !ran {
		t.Fatal("Invoke did not call fn")
	}
}

type stubLogger struct{ called bool }

func (l *stubLogger) Error(msg string, fields ...any) { l.called = true }
