package runtime

import (
	"fmt"
	"time"
)

// Event kinds recorded by the coordinator.
const (
	EventClaim   = "claim"
	EventRenew   = "renew"
	EventRelease = "release"
	EventDone    = "done"
	EventVerify  = "verify"
	EventJoin    = "join"
	EventMessage = "message"
	EventCleanup = "cleanup"
	EventDelete  = "delete"
)

// AppendEvent records one audit row. The log is append-only and
// best-effort: callers typically log and swallow the error rather than
// fail the operation that produced it.
func (s *Store) AppendEvent(kind, actorID, taskID, detail string) error {
	_, err := s.db.Exec(`
		INSERT INTO events (kind, actor_id, task_id, detail, created_at)
		VALUES (?,?,?,?,?)`,
		kind, actorID, taskID, detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first.
func (s *Store) ListEvents(limit int) ([]*Event, error) {
	query := `SELECT id, kind, actor_id, task_id, detail, created_at FROM events ORDER BY id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.ActorID, &e.TaskID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
