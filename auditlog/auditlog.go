// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: auditlog/auditlog.go
// Summary: Append-only SQLite log of window lifecycle events, for
//           post-mortem inspection of a session after the process exits.
// Usage: Server.audit.Record is called from the dispatcher on window
//        creation and client disconnect; never on the hot compositor path.

package auditlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id        INTEGER PRIMARY KEY,
    ts        INTEGER NOT NULL,
    run_id    TEXT NOT NULL,
    event     TEXT NOT NULL,
    wid       INTEGER NOT NULL,
    client_id INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
`

// Log is an append-only record of window lifecycle events, backed by a
// single SQLite file. It is safe for concurrent Record calls. Every event
// recorded by one process instance carries the same runID, so events from a
// prior server run in the same database file can be told apart from the
// current one after a restart.
type Log struct {
	db    *sql.DB
	runID string
}

// Open creates or reopens the audit database at path, creating its parent
// directory if needed, and starts a fresh run.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("auditlog: create dir: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditlog: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditlog: schema: %w", err)
	}

	return &Log{db: db, runID: uuid.NewString()}, nil
}

// RunID identifies this process's audit trail; the debug introspection
// surface reports it so an operator can tell a live tail from history.
func (l *Log) RunID() string { return l.runID }

// Record appends one lifecycle event. Failures are not fatal to the
// compositor; callers log and continue rather than propagate.
func (l *Log) Record(event string, wid uint32, clientID uint64) error {
	_, err := l.db.Exec(
		"INSERT INTO events (ts, run_id, event, wid, client_id) VALUES (?, ?, ?, ?, ?)",
		time.Now().UnixNano(), l.runID, event, wid, clientID,
	)
	return err
}

// Recent returns the most recent n events, newest first, for the debug
// introspection surface.
func (l *Log) Recent(n int) ([]Event, error) {
	rows, err := l.db.Query(
		"SELECT ts, run_id, event, wid, client_id FROM events ORDER BY id DESC LIMIT ?", n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&ts, &e.RunID, &e.Event, &e.Wid, &e.ClientID); err != nil {
			return nil, err
		}
		e.Time = time.Unix(0, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Event is one recorded lifecycle entry.
type Event struct {
	Time     time.Time
	RunID    string
	Event    string
	Wid      uint32
	ClientID uint64
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
