package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewHandler_JSONAddsTraceIDs(t *testing.T) {
	withRecorder(t)
	buf := &bytes.Buffer{}
	logger := slog.New(NewHandler(buf, LogOptions{Level: "debug", Format: "json"}))

	ctx, span := TraceClassification(context.Background(), "https://a.example/")
	logger.With("component", "test").DebugContext(ctx, "classified", "url", "https://a.example/")
	span.End()

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	if m["msg"] != "classified" || m["component"] != "test" {
		t.Errorf("unexpected entry: %v", m)
	}
	if m["trace_id"] != ExtractTraceID(ctx) {
		t.Errorf("trace_id = %v, want %s", m["trace_id"], ExtractTraceID(ctx))
	}
}

func TestNewHandler_LevelFilters(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(NewHandler(buf, LogOptions{Level: "warn"}))
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output: %q", buf.String())
	}
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("trace_id should be absent without a span: %q", buf.String())
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "phishscan.log")
	logger, closer, err := NewLogger(LogOptions{Level: "info", Format: "text", Output: path})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hello", "k", "v")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "msg=hello") || !strings.Contains(string(b), "k=v") {
		t.Errorf("unexpected file contents: %q", b)
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("nothing happens")
}
