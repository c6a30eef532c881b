package runtime

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/beacon-works/beacon/internal/errors"
)

// JoinParams registers an agent. Name is required; the rest is optional
// context carried for other agents to see.
type JoinParams struct {
	Name         string
	Role         string
	Capabilities []string
	SessionMeta  map[string]string
}

// Join registers an agent by name. Joining an already-registered name is
// idempotent: the existing agent is returned with role, capabilities,
// session meta, and last_seen refreshed, so a restarted agent keeps its
// identity.
func (s *Store) Join(p JoinParams) (*Agent, error) {
	if p.Name == "" {
		return nil, errors.NewValidationError("agent name is required").WithField("name")
	}

	now := time.Now().UTC()
	caps, _ := json.Marshal(p.Capabilities)
	meta, _ := json.Marshal(p.SessionMeta)

	existing, err := s.agentByName(p.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		_, err := s.db.Exec(
			`UPDATE agents SET role=?, capabilities=?, session_meta=?, last_seen=? WHERE id=?`,
			p.Role, string(caps), string(meta), now, existing.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("refresh agent: %w", err)
		}
		existing.Role = p.Role
		existing.Capabilities = append([]string(nil), p.Capabilities...)
		existing.SessionMeta = p.SessionMeta
		existing.LastSeen = now
		return existing, nil
	}

	agent := &Agent{
		ID:           NewAgentID(),
		Name:         p.Name,
		Role:         p.Role,
		Capabilities: append([]string(nil), p.Capabilities...),
		SessionMeta:  p.SessionMeta,
		JoinedAt:     now,
		LastSeen:     now,
	}
	_, err = s.db.Exec(
		`INSERT INTO agents (id, name, role, capabilities, session_meta, joined_at, last_seen) VALUES (?,?,?,?,?,?,?)`,
		agent.ID, agent.Name, agent.Role, string(caps), string(meta), agent.JoinedAt, agent.LastSeen,
	)
	if err != nil {
		return nil, fmt.Errorf("insert agent: %w", err)
	}
	return agent, nil
}

// GetAgent retrieves an agent by id.
func (s *Store) GetAgent(id string) (*Agent, error) {
	row := s.db.QueryRow(`SELECT id, name, role, capabilities, session_meta, joined_at, last_seen FROM agents WHERE id=?`, id)
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("agent", id)
	}
	return agent, err
}

// Heartbeat refreshes an agent's last_seen timestamp.
func (s *Store) Heartbeat(id string) error {
	res, err := s.db.Exec(`UPDATE agents SET last_seen=? WHERE id=?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NewNotFoundError("agent", id)
	}
	return nil
}

// ListAgents returns every registered agent, oldest join first.
func (s *Store) ListAgents() ([]*Agent, error) {
	rows, err := s.db.Query(`SELECT id, name, role, capabilities, session_meta, joined_at, last_seen FROM agents ORDER BY joined_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func (s *Store) agentByName(name string) (*Agent, error) {
	row := s.db.QueryRow(`SELECT id, name, role, capabilities, session_meta, joined_at, last_seen FROM agents WHERE name=?`, name)
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return agent, err
}

func scanAgent(sc scanner) (*Agent, error) {
	var a Agent
	var caps, meta string
	if err := sc.Scan(&a.ID, &a.Name, &a.Role, &caps, &meta, &a.JoinedAt, &a.LastSeen); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(caps), &a.Capabilities); err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &a.SessionMeta); err != nil {
		return nil, fmt.Errorf("decode session meta: %w", err)
	}
	return &a, nil
}
