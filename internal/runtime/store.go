package runtime

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	role         TEXT NOT NULL DEFAULT '',
	capabilities TEXT NOT NULL DEFAULT '[]',
	session_meta TEXT NOT NULL DEFAULT '{}',
	joined_at    DATETIME NOT NULL,
	last_seen    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS leases (
	id          TEXT PRIMARY KEY,
	task_id     TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	expires_at  DATETIME NOT NULL,
	renew_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_leases_task ON leases(task_id, expires_at);
CREATE INDEX IF NOT EXISTS idx_leases_agent ON leases(agent_id, expires_at);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	from_agent TEXT NOT NULL,
	to_agent   TEXT NOT NULL DEFAULT '',
	task_id    TEXT NOT NULL DEFAULT '',
	subject    TEXT NOT NULL,
	body       TEXT NOT NULL,
	severity   TEXT NOT NULL DEFAULT 'info',
	sent_at    DATETIME NOT NULL,
	read_at    DATETIME
);
CREATE INDEX IF NOT EXISTS idx_messages_to ON messages(to_agent, sent_at);
CREATE INDEX IF NOT EXISTS idx_messages_task ON messages(task_id, sent_at);

CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	actor_id   TEXT NOT NULL DEFAULT '',
	task_id    TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
`

// busyTimeoutMS is how long SQLite waits on a locked database before
// returning SQLITE_BUSY, covering brief cross-process contention.
const busyTimeoutMS = 5000

// Store persists the runtime plane in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the runtime database at dbPath and ensures the
// schema exists. WAL mode lets readers proceed while a writer commits.
// The caller is responsible for calling Close.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", dbPath, busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY within the process
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// scanner abstracts sql.Row and sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}
