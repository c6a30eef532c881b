// Package runtime implements the runtime plane: agents, leases, and
// messages, backed by SQLite. Runtime state is ephemeral coordination
// data and is kept strictly apart from the task graph document.
package runtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lease TTL bounds. Requested TTLs are clamped, never rejected.
const (
	DefaultLeaseTTL = 15 * time.Minute
	MinLeaseTTL     = 60 * time.Second
	MaxLeaseTTL     = 24 * time.Hour
)

// MaxMessageBytes bounds a message body.
const MaxMessageBytes = 16 * 1024

// ClampTTL normalizes a requested lease TTL into the allowed range.
// Zero or negative means "use the default".
func ClampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultLeaseTTL
	}
	if ttl < MinLeaseTTL {
		return MinLeaseTTL
	}
	if ttl > MaxLeaseTTL {
		return MaxLeaseTTL
	}
	return ttl
}

// Agent is a registered worker process. SessionMeta is free-form
// context set at join time, e.g. hostname or pid.
type Agent struct {
	ID           string
	Name         string
	Role         string
	Capabilities []string
	SessionMeta  map[string]string
	JoinedAt     time.Time
	LastSeen     time.Time
}

// Lease is a time-bounded exclusive claim on a task. A lease is active
// while expires_at is in the future; expiry is lazy, there is no
// background sweeper.
type Lease struct {
	ID         string
	TaskID     string
	AgentID    string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RenewCount int
}

// Active reports whether the lease is live at the given instant.
func (l *Lease) Active(now time.Time) bool {
	return l.ExpiresAt.After(now)
}

// Remaining returns the time left on the lease, never negative.
func (l *Lease) Remaining(now time.Time) time.Duration {
	if d := l.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Severity classifies a message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityHandoff Severity = "handoff"
	SeverityBlocker Severity = "blocker"
)

var validSeverities = map[Severity]bool{
	SeverityInfo:    true,
	SeverityWarning: true,
	SeverityHandoff: true,
	SeverityBlocker: true,
}

// ParseSeverity validates a severity string. Empty means info.
func ParseSeverity(s string) (Severity, error) {
	if s == "" {
		return SeverityInfo, nil
	}
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !validSeverities[sev] {
		return "", fmt.Errorf("invalid severity %q (valid: info, warning, handoff, blocker)", s)
	}
	return sev, nil
}

// Message is a note between agents, addressed to exactly one recipient:
// either a specific agent or a task thread.
type Message struct {
	ID        string
	FromAgent string
	ToAgent   string // mutually exclusive with TaskID
	TaskID    string
	Subject   string
	Body      string
	Severity  Severity
	SentAt    time.Time
	ReadAt    *time.Time
}

// Read reports whether the message has been marked read.
func (m *Message) Read() bool { return m.ReadAt != nil }

// Event is one append-only audit record.
type Event struct {
	ID        int64
	Kind      string
	ActorID   string
	TaskID    string
	Detail    string
	CreatedAt time.Time
}

// hexID returns the first n hex chars of a random UUID.
func hexID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// NewAgentID generates an agent id: "A" plus 8 uppercase hex chars.
func NewAgentID() string { return "A" + strings.ToUpper(hexID(8)) }

// NewLeaseID generates a lease id: "L" plus 8 hex chars.
func NewLeaseID() string { return "L" + hexID(8) }

// NewMessageID generates a message id: "M" plus 12 hex chars.
func NewMessageID() string { return "M" + hexID(12) }
