package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/beacon-works/beacon/internal/config"
	"github.com/beacon-works/beacon/internal/workspace"
)

func TestCommandTree(t *testing.T) {
	want := []string{"init", "task", "agent", "msg", "stats", "cleanup", "watch"}
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range want {
		if !found[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestTaskSubcommands(t *testing.T) {
	want := []string{"list", "show", "create", "update", "delete", "next",
		"claim", "renew", "release", "done", "verify", "graph", "validate"}
	found := make(map[string]bool)
	for _, c := range taskCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range want {
		if !found[name] {
			t.Errorf("task subcommand %q not registered", name)
		}
	}
}

func TestRequireAgent(t *testing.T) {
	t.Setenv("BEACON_AGENT_ID", "")
	os.Unsetenv("BEACON_AGENT_ID")

	if _, err := requireAgent(""); err == nil {
		t.Error("expected error with no agent id available")
	}

	got, err := requireAgent("A12345678")
	if err != nil || got != "A12345678" {
		t.Errorf("flag value not used: got %q, %v", got, err)
	}

	t.Setenv("BEACON_AGENT_ID", "AABCDEF01")
	got, err = requireAgent("")
	if err != nil || got != "AABCDEF01" {
		t.Errorf("env value not used: got %q, %v", got, err)
	}

	// Flag beats env.
	got, _ = requireAgent("A12345678")
	if got != "A12345678" {
		t.Errorf("flag should take precedence, got %q", got)
	}
}

func TestLogPath(t *testing.T) {
	ws := workspace.Workspace{Root: t.TempDir()}
	cfg := config.Default()

	if got := logPath(ws, cfg); got != ws.LogPath() {
		t.Errorf("default log path: got %q, want %q", got, ws.LogPath())
	}

	custom := filepath.Join(t.TempDir(), "beacon.log")
	cfg.Logging.File = custom
	if got := logPath(ws, cfg); got != custom {
		t.Errorf("logging.file override ignored: got %q, want %q", got, custom)
	}
}
