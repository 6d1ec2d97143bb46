package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func captureLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})
	return NewWithHandler(h), &buf
}

func TestModuleAttribute(t *testing.T) {
	l, buf := captureLogger(slog.LevelInfo)
	l.Module("trie").Info("commit finished", "nodes", 12)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["module"] != "trie" {
		t.Errorf("module = %v, want trie", entry["module"])
	}
	if entry["msg"] != "commit finished" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["nodes"] != float64(12) {
		t.Errorf("nodes = %v, want 12", entry["nodes"])
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := captureLogger(slog.LevelWarn)
	l.Debug("hidden")
	l.Info("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("below-level output leaked: %s", buf.String())
	}
	l.Warn("visible")
	if buf.Len() == 0 {
		t.Fatal("warn output missing")
	}
}

func TestWithContext(t *testing.T) {
	l, buf := captureLogger(slog.LevelInfo)
	l.With("block", 42).Error("resolve failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["block"] != float64(42) {
		t.Errorf("block = %v, want 42", entry["block"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetDefault(t *testing.T) {
	old := Default()
	defer SetDefault(old)

	l, buf := captureLogger(slog.LevelInfo)
	SetDefault(l)
	Info("through default")
	if buf.Len() == 0 {
		t.Fatal("default logger did not receive output")
	}
}
