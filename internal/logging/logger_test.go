package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.log")

	log, err := NewLogger(path, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info("task claimed", "task_id", "T001", "agent_id", "A1")
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("log entry is not JSON: %v", err)
	}
	if entry["msg"] != "task claimed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["task_id"] != "T001" {
		t.Errorf("task_id = %v", entry["task_id"])
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.log")

	log, err := NewLogger(path, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Debug("dropped")
	log.Info("dropped too")
	log.Warn("kept")
	_ = log.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d entries, want 1: %s", len(lines), data)
	}
	if !strings.Contains(lines[0], "kept") {
		t.Errorf("entry = %s", lines[0])
	}
}

func TestChildLoggersInheritAttrs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.log")

	log, err := NewLogger(path, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	child := log.WithAgent("A1").WithTask("T001")
	child.Info("renewed")
	_ = log.Close()

	data, _ := os.ReadFile(path)
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["agent_id"] != "A1" || entry["task_id"] != "T001" {
		t.Errorf("entry missing inherited attrs: %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Info("goes nowhere")
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
