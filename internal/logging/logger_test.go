package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_WritesToFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("supervision tick", "apps", 2)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "supervisor.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log entry is not valid JSON: %v", err)
	}
	if entry["msg"] != "supervision tick" {
		t.Errorf("msg = %v, want %q", entry["msg"], "supervision tick")
	}
	if entry["apps"] != float64(2) {
		t.Errorf("apps = %v, want 2", entry["apps"])
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("ignored debug")
	logger.Info("ignored info")
	logger.Warn("kept warn")
	logger.Close()

	data, _ := os.ReadFile(filepath.Join(dir, "supervisor.log"))
	content := string(data)

	if strings.Contains(content, "ignored debug") || strings.Contains(content, "ignored info") {
		t.Error("messages below WARN should be filtered")
	}
	if !strings.Contains(content, "kept warn") {
		t.Error("WARN message should be logged")
	}
}

func TestLogger_AttributePropagation(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithApp(724).WithWindow("724-0-af31").WithRule("stop_after_25_loops")
	child.Info("rule fired")
	logger.Close()

	data, _ := os.ReadFile(filepath.Join(dir, "supervisor.log"))

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log entry is not valid JSON: %v", err)
	}
	if entry["app_pid"] != float64(724) {
		t.Errorf("app_pid = %v, want 724", entry["app_pid"])
	}
	if entry["window_id"] != "724-0-af31" {
		t.Errorf("window_id = %v, want 724-0-af31", entry["window_id"])
	}
	if entry["rule"] != "stop_after_25_loops" {
		t.Errorf("rule = %v, want stop_after_25_loops", entry["rule"])
	}
}

func TestLogger_ChildDoesNotMutateParent(t *testing.T) {
	logger := NopLogger()

	child := logger.WithWindow("w-1")
	if len(logger.attrs) != 0 {
		t.Error("parent logger attrs should be unchanged")
	}
	if len(child.attrs) != 1 {
		t.Errorf("child attrs = %d, want 1", len(child.attrs))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := ParseLevel(tc.in); got != tc.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()

	// Must not panic and Close must be a no-op.
	logger.Info("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on NopLogger returned error: %v", err)
	}
}
