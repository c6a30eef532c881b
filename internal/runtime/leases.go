package runtime

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/beacon-works/beacon/internal/errors"
)

// CreateLease claims a task for an agent. The insert is guarded in a
// single statement so that under concurrent claimers exactly one row for
// an active lease can exist per task; the loser gets a ClaimConflictError
// naming the holder and the remaining TTL. The ttl is clamped into the
// allowed range.
func (s *Store) CreateLease(taskID, agentID string, ttl time.Duration) (*Lease, error) {
	now := time.Now().UTC()
	lease := &Lease{
		ID:        NewLeaseID(),
		TaskID:    taskID,
		AgentID:   agentID,
		CreatedAt: now,
		ExpiresAt: now.Add(ClampTTL(ttl)),
	}

	res, err := s.db.Exec(`
		INSERT INTO leases (id, task_id, agent_id, created_at, expires_at, renew_count)
		SELECT ?, ?, ?, ?, ?, 0
		WHERE NOT EXISTS (SELECT 1 FROM leases WHERE task_id = ? AND expires_at > ?)`,
		lease.ID, lease.TaskID, lease.AgentID, lease.CreatedAt, lease.ExpiresAt,
		taskID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert lease: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		holder, err := s.ActiveLease(taskID)
		if err != nil {
			return nil, err
		}
		if holder == nil {
			// Holder expired between our insert and this read; the
			// caller can simply retry.
			return nil, errors.NewTransientError("claim", fmt.Errorf("lease on %s vanished", taskID))
		}
		return nil, errors.NewClaimConflictError(taskID, holder.AgentID, holder.ExpiresAt)
	}
	return lease, nil
}

// ActiveLease returns the live lease on a task, or nil. Expiry is lazy:
// expired rows stay in the table for audit and are filtered here.
func (s *Store) ActiveLease(taskID string) (*Lease, error) {
	row := s.db.QueryRow(`
		SELECT id, task_id, agent_id, created_at, expires_at, renew_count
		FROM leases WHERE task_id = ? AND expires_at > ?
		ORDER BY expires_at DESC LIMIT 1`,
		taskID, time.Now().UTC(),
	)
	lease, err := scanLease(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return lease, err
}

// ActiveLeases returns every live lease, soonest expiry first.
func (s *Store) ActiveLeases() ([]*Lease, error) {
	return s.queryLeases(`
		SELECT id, task_id, agent_id, created_at, expires_at, renew_count
		FROM leases WHERE expires_at > ? ORDER BY expires_at ASC`,
		time.Now().UTC(),
	)
}

// LeasesByAgent returns the live leases held by an agent.
func (s *Store) LeasesByAgent(agentID string) ([]*Lease, error) {
	return s.queryLeases(`
		SELECT id, task_id, agent_id, created_at, expires_at, renew_count
		FROM leases WHERE agent_id = ? AND expires_at > ? ORDER BY expires_at ASC`,
		agentID, time.Now().UTC(),
	)
}

// RenewLease extends a live lease. The ref may be either the task id or
// the lease id (leases carry an "L" prefix): a lease-shaped ref may name
// the lease row directly, anything else only matches task ids. Only the
// holding agent may renew: a live lease held by someone else yields
// ErrLeaseMismatch, no live lease at all yields ErrNoActiveLease.
func (s *Store) RenewLease(ref, agentID string, ttl time.Duration) (*Lease, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ClampTTL(ttl))

	clause, refs := refClause(ref)
	args := append([]any{expiresAt}, refs...)
	args = append(args, agentID, now)
	res, err := s.db.Exec(`
		UPDATE leases SET expires_at = ?, renew_count = renew_count + 1
		WHERE `+clause+` AND agent_id = ? AND expires_at > ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("renew lease: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, s.renewFailure(ref, agentID, now)
	}

	args = append(refs, agentID, now)
	row := s.db.QueryRow(`
		SELECT id, task_id, agent_id, created_at, expires_at, renew_count
		FROM leases WHERE `+clause+` AND agent_id = ? AND expires_at > ?`,
		args...,
	)
	return scanLease(row)
}

// ReleaseLease ends the agent's live lease on a task by setting its
// expiry to now, preserving the row for audit. Returns ErrNoActiveLease
// or ErrLeaseMismatch when there is nothing of the agent's to release.
func (s *Store) ReleaseLease(taskID, agentID string) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE leases SET expires_at = ?
		WHERE task_id = ? AND agent_id = ? AND expires_at > ?`,
		now, taskID, agentID, now,
	)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.renewFailure(taskID, agentID, now)
	}
	return nil
}

// ExpireOrphanedLeases force-expires live leases whose holder is not a
// registered agent, returning how many were expired.
func (s *Store) ExpireOrphanedLeases() (int, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE leases SET expires_at = ?
		WHERE expires_at > ? AND agent_id NOT IN (SELECT id FROM agents)`,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("expire orphaned leases: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// renewFailure distinguishes "no live lease" from "held by someone else"
// for a failed renew or release.
func (s *Store) renewFailure(ref, agentID string, now time.Time) error {
	clause, refs := refClause(ref)
	args := append(refs, now)
	row := s.db.QueryRow(`
		SELECT id, task_id, agent_id, created_at, expires_at, renew_count
		FROM leases WHERE `+clause+` AND expires_at > ?
		ORDER BY expires_at DESC LIMIT 1`,
		args...,
	)
	holder, err := scanLease(row)
	if err == sql.ErrNoRows {
		return errors.Wrapf(errors.ErrNoActiveLease, "%s", ref)
	}
	if err != nil {
		return err
	}
	return errors.Wrapf(errors.ErrLeaseMismatch, "%s is held by %s, not %s", holder.TaskID, holder.AgentID, agentID)
}

// isLeaseRef reports whether ref looks like a lease id rather than a
// task id.
func isLeaseRef(ref string) bool {
	return strings.HasPrefix(ref, "L") && len(ref) == 9
}

// refClause builds the WHERE fragment matching a task-or-lease ref.
func refClause(ref string) (string, []any) {
	if isLeaseRef(ref) {
		return `(task_id = ? OR id = ?)`, []any{ref, ref}
	}
	return `task_id = ?`, []any{ref}
}

func (s *Store) queryLeases(query string, args ...any) ([]*Lease, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leases: %w", err)
	}
	defer rows.Close()

	var leases []*Lease
	for rows.Next() {
		lease, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		leases = append(leases, lease)
	}
	return leases, rows.Err()
}

func scanLease(sc scanner) (*Lease, error) {
	var l Lease
	if err := sc.Scan(&l.ID, &l.TaskID, &l.AgentID, &l.CreatedAt, &l.ExpiresAt, &l.RenewCount); err != nil {
		return nil, err
	}
	return &l, nil
}
