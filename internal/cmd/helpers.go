package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/beacon-works/beacon/internal/config"
	"github.com/beacon-works/beacon/internal/coordination"
	"github.com/beacon-works/beacon/internal/logging"
	"github.com/beacon-works/beacon/internal/runtime"
	"github.com/beacon-works/beacon/internal/spec"
	"github.com/beacon-works/beacon/internal/workspace"
)

// openCoordinator locates the workspace and wires up the coordinator.
// The returned closer shuts down both the runtime store and the logger.
func openCoordinator() (*coordination.Coordinator, func(), error) {
	ws, err := workspace.Find("")
	if err != nil {
		return nil, nil, err
	}

	cfg := config.Get()
	log, err := logging.NewLogger(logPath(ws, cfg), cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	coord, err := coordination.New(ws, cfg, log)
	if err != nil {
		log.Close()
		return nil, nil, err
	}
	closer := func() {
		_ = coord.Close()
		log.Close()
	}
	return coord, closer, nil
}

// logPath picks the configured log file, defaulting to the workspace
// log under .beacon/.
func logPath(ws workspace.Workspace, cfg *config.Config) string {
	if cfg.Logging.File != "" {
		return cfg.Logging.File
	}
	return ws.LogPath()
}

// printJSON writes the value as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// taskJSON is the wire shape of a task in --json output.
type taskJSON struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	DependsOn          []string `json:"depends_on,omitempty"`
	Labels             []string `json:"labels,omitempty"`
	Locks              []string `json:"locks,omitempty"`
	Priority           int      `json:"priority"`
	Status             string   `json:"status"`
	LeasedBy           string   `json:"leased_by,omitempty"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

func toTaskJSON(t *spec.Task) taskJSON {
	return taskJSON{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		AcceptanceCriteria: t.AcceptanceCriteria,
		DependsOn:          t.DependsOn,
		Labels:             t.Labels,
		Locks:              t.Locks,
		Priority:           t.Priority,
		Status:             t.Status.String(),
		CreatedAt:          t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          t.UpdatedAt.Format(time.RFC3339),
	}
}

// leaseJSON is the wire shape of a lease in --json output.
type leaseJSON struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id"`
	AgentID    string `json:"agent_id"`
	ExpiresAt  string `json:"expires_at"`
	RemainingS int    `json:"remaining_seconds"`
	RenewCount int    `json:"renew_count"`
}

func toLeaseJSON(l *runtime.Lease) leaseJSON {
	return leaseJSON{
		ID:         l.ID,
		TaskID:     l.TaskID,
		AgentID:    l.AgentID,
		ExpiresAt:  l.ExpiresAt.Format(time.RFC3339),
		RemainingS: int(l.Remaining(time.Now().UTC()).Seconds()),
		RenewCount: l.RenewCount,
	}
}

// messageJSON is the wire shape of a message in --json output.
type messageJSON struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	ToAgent  string `json:"to_agent,omitempty"`
	TaskID   string `json:"task_id,omitempty"`
	Subject  string `json:"subject"`
	Body     string `json:"body,omitempty"`
	Severity string `json:"severity"`
	SentAt   string `json:"sent_at"`
	Read     bool   `json:"read"`
}

func toMessageJSON(m *runtime.Message) messageJSON {
	return messageJSON{
		ID:       m.ID,
		From:     m.FromAgent,
		ToAgent:  m.ToAgent,
		TaskID:   m.TaskID,
		Subject:  m.Subject,
		Body:     m.Body,
		Severity: string(m.Severity),
		SentAt:   m.SentAt.Format(time.RFC3339),
		Read:     m.Read(),
	}
}

// requireAgent resolves the acting agent id from the --agent flag or the
// BEACON_AGENT_ID environment variable.
func requireAgent(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("BEACON_AGENT_ID"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("agent id required: pass --agent or set BEACON_AGENT_ID")
}
