package obslog

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lonestarx1/opgraph/pkg/trace"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{Debug, "debug"},
		{Info, "info"},
		{Warn, "warn"},
		{Error, "error"},
		{Level(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Warn)

	logger.Debug("debug msg")
	logger.Info("info msg")
	logger.Warn("warn msg")
	logger.Error("error msg")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var e1, e2 entry
	if err := json.Unmarshal([]byte(lines[0]), &e1); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &e2); err != nil {
		t.Fatal(err)
	}

	if e1.Level != "warn" {
		t.Errorf("first line level = %q, want warn", e1.Level)
	}
	if e2.Level != "error" {
		t.Errorf("second line level = %q, want error", e2.Level)
	}
}

func TestLoggerOutputFormatWithNumericFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Debug)

	logger.Info("step completed", "stepId", "B", "costUSD", 0.0042, "retries", 2)

	var e entry
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if e.Msg != "step completed" {
		t.Errorf("Msg = %q, want %q", e.Msg, "step completed")
	}
	if e.Fields["stepId"] != "B" {
		t.Errorf("Fields[stepId] = %v, want B", e.Fields["stepId"])
	}
	if e.Fields["costUSD"] != 0.0042 {
		t.Errorf("Fields[costUSD] = %v, want 0.0042", e.Fields["costUSD"])
	}
	if e.Fields["retries"] != float64(2) {
		t.Errorf("Fields[retries] = %v, want 2", e.Fields["retries"])
	}
}

func TestLoggerOddKVPairs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Debug)

	logger.Info("test", "key1", "val1", "orphan")

	var e entry
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.Fields["key1"] != "val1" {
		t.Errorf("Fields[key1] = %v, want val1", e.Fields["key1"])
	}
	if _, ok := e.Fields["orphan"]; ok {
		t.Error("orphan key should not be in Fields")
	}
}

func TestLoggerTraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Debug)

	tracer := trace.NewInMemory()
	ctx, span := tracer.StartSpan(context.Background(), "pipeline.step")

	logger.InfoCtx(ctx, "correlated log")

	var e entry
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if e.SpanID != span.ID {
		t.Errorf("SpanID = %q, want %q", e.SpanID, span.ID)
	}
	if e.TraceID == "" {
		t.Error("TraceID is empty")
	}
}

func TestLoggerNoCtxSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Debug)

	logger.InfoCtx(context.Background(), "no span")

	var e entry
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatal(err)
	}

	if e.SpanID != "" {
		t.Errorf("SpanID should be empty, got %q", e.SpanID)
	}
	if e.TraceID != "" {
		t.Errorf("TraceID should be empty, got %q", e.TraceID)
	}
}

func TestDefaultLoggerIsUsableAndReplaceable(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(New(&buf, Debug))

	Default().Warn("graceful degrade", "provider", "anthropic")

	var e entry
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.Level != "warn" {
		t.Errorf("Level = %q, want warn", e.Level)
	}
}

func TestLoggerConcurrency(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Debug)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("concurrent msg")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 50 {
		t.Errorf("expected 50 log lines, got %d", len(lines))
	}
}

func TestFileWriterCreateAndWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	fw, err := NewFileWriter(path, FileConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = fw.Close() }()

	msg := []byte("hello world\n")
	n, err := fw.Write(msg)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(msg) {
		t.Errorf("Write = %d, want %d", n, len(msg))
	}

	data, _ := os.ReadFile(path)
	if string(data) != string(msg) {
		t.Errorf("file content = %q, want %q", string(data), string(msg))
	}
}

func TestFileWriterRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	fw, err := NewFileWriter(path, FileConfig{MaxSize: 20, MaxFiles: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = fw.Close() }()

	data := []byte("12345678901234567890X") // 21 bytes > MaxSize 20
	_, err = fw.Write(data)
	if err != nil {
		t.Fatal(err)
	}

	_, _ = fw.Write([]byte("new data\n"))

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("rotated file .1 should exist: %v", err)
	}

	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), "new data") {
		t.Errorf("current file should contain new data, got: %q", string(content))
	}
}

func TestFileWriterNoRotationWhenUnderLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	fw, err := NewFileWriter(path, FileConfig{MaxSize: 1000})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = fw.Close() }()

	_, _ = fw.Write([]byte("small\n"))

	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("should not rotate under limit")
	}
}
