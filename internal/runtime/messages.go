package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/beacon-works/beacon/internal/errors"
)

// Message wait polling: start at 100ms, back off by 1.5x, cap at 2s.
const (
	waitPollStart  = 100 * time.Millisecond
	waitPollFactor = 1.5
	waitPollMax    = 2 * time.Second
)

// SendMessage validates and persists a message. Exactly one recipient
// must be set: a target agent or a task thread, never both, never
// neither. The body is bounded at MaxMessageBytes.
func (s *Store) SendMessage(m *Message) (*Message, error) {
	if m.FromAgent == "" {
		return nil, errors.NewValidationError("message sender is required").WithField("from")
	}
	if (m.ToAgent == "") == (m.TaskID == "") {
		return nil, errors.NewValidationError("message needs exactly one recipient: an agent or a task").WithField("to")
	}
	if m.Subject == "" {
		return nil, errors.NewValidationError("message subject is required").WithField("subject")
	}
	if len(m.Body) > MaxMessageBytes {
		return nil, errors.NewValidationError(fmt.Sprintf("message body exceeds %d bytes", MaxMessageBytes)).WithField("body")
	}
	if m.Severity == "" {
		m.Severity = SeverityInfo
	} else if !validSeverities[m.Severity] {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid severity %q", m.Severity)).WithField("severity").WithValue(string(m.Severity))
	}

	m.ID = NewMessageID()
	m.SentAt = time.Now().UTC()
	m.ReadAt = nil

	_, err := s.db.Exec(`
		INSERT INTO messages (id, from_agent, to_agent, task_id, subject, body, severity, sent_at, read_at)
		VALUES (?,?,?,?,?,?,?,?,NULL)`,
		m.ID, m.FromAgent, m.ToAgent, m.TaskID, m.Subject, m.Body, string(m.Severity), m.SentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// InboxOptions filters an inbox read.
type InboxOptions struct {
	UnreadOnly bool
	Severity   Severity
	From       string
	Limit      int
	MarkRead   bool
}

// Inbox returns messages addressed to an agent, newest first. With
// MarkRead set, returned unread messages are stamped read in the same
// call.
func (s *Store) Inbox(agentID string, opts InboxOptions) ([]*Message, error) {
	query := `SELECT id, from_agent, to_agent, task_id, subject, body, severity, sent_at, read_at
		FROM messages WHERE to_agent = ?`
	args := []any{agentID}
	if opts.UnreadOnly {
		query += ` AND read_at IS NULL`
	}
	if opts.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, string(opts.Severity))
	}
	if opts.From != "" {
		query += ` AND from_agent = ?`
		args = append(args, opts.From)
	}
	query += ` ORDER BY sent_at DESC, id DESC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, opts.Limit)
	}

	msgs, err := s.queryMessages(query, args...)
	if err != nil {
		return nil, err
	}

	if opts.MarkRead {
		now := time.Now().UTC()
		for _, m := range msgs {
			if m.ReadAt != nil {
				continue
			}
			if _, err := s.db.Exec(`UPDATE messages SET read_at=? WHERE id=? AND read_at IS NULL`, now, m.ID); err != nil {
				return nil, fmt.Errorf("mark read: %w", err)
			}
			t := now
			m.ReadAt = &t
		}
	}
	return msgs, nil
}

// MarkRead stamps a single message read. Idempotent.
func (s *Store) MarkRead(messageID string) error {
	res, err := s.db.Exec(`UPDATE messages SET read_at=? WHERE id=? AND read_at IS NULL`, time.Now().UTC(), messageID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Either already read or missing; only the latter is an error.
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE id=?`, messageID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return errors.NewNotFoundError("message", messageID)
		}
	}
	return nil
}

// UnreadCount returns how many unread messages an agent has.
func (s *Store) UnreadCount(agentID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE to_agent=? AND read_at IS NULL`, agentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MessageCount returns the total number of stored messages.
func (s *Store) MessageCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// TaskThread returns the messages on a task thread, oldest first, so the
// thread reads top to bottom.
func (s *Store) TaskThread(taskID string) ([]*Message, error) {
	return s.queryMessages(`
		SELECT id, from_agent, to_agent, task_id, subject, body, severity, sent_at, read_at
		FROM messages WHERE task_id = ? ORDER BY sent_at ASC, id ASC`,
		taskID,
	)
}

// SearchMessages finds messages whose subject or body contains the term,
// newest first.
func (s *Store) SearchMessages(term string, limit int) ([]*Message, error) {
	pattern := "%" + term + "%"
	query := `SELECT id, from_agent, to_agent, task_id, subject, body, severity, sent_at, read_at
		FROM messages WHERE subject LIKE ? OR body LIKE ? ORDER BY sent_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	return s.queryMessages(query, pattern, pattern)
}

// WaitForMessage blocks until the agent has at least one unread message
// or the context expires, polling with capped exponential backoff.
// Returns the unread messages without marking them read.
func (s *Store) WaitForMessage(ctx context.Context, agentID string) ([]*Message, error) {
	delay := waitPollStart
	for {
		msgs, err := s.Inbox(agentID, InboxOptions{UnreadOnly: true})
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			return msgs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * waitPollFactor)
		if delay > waitPollMax {
			delay = waitPollMax
		}
	}
}

func (s *Store) queryMessages(query string, args ...any) ([]*Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func scanMessage(sc scanner) (*Message, error) {
	var m Message
	var severity string
	var readAt sql.NullTime
	if err := sc.Scan(&m.ID, &m.FromAgent, &m.ToAgent, &m.TaskID, &m.Subject, &m.Body, &severity, &m.SentAt, &readAt); err != nil {
		return nil, err
	}
	m.Severity = Severity(severity)
	if readAt.Valid {
		t := readAt.Time
		m.ReadAt = &t
	}
	return &m, nil
}
