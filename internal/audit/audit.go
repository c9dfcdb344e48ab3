// Package audit persists a trail of every command decision made by the
// sandbox: executed commands, policy denials and process failures. The trail
// is what lets an operator reconstruct exactly what an agent attempted.
package audit

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS command_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	session_id TEXT NOT NULL,
	command TEXT NOT NULL,
	status TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_command_events_timestamp ON command_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_command_events_session ON command_events(session_id);
`

// Event is one recorded command decision
type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Command   string    `json:"command"`
	Status    string    `json:"status"` // executed, denied, failed
	Detail    string    `json:"detail,omitempty"`
}

// Config holds audit trail configuration
type Config struct {
	// Path is the SQLite database file
	Path string

	// Retention is how long events are kept (default 30 days)
	Retention time.Duration

	// PruneSchedule is the cron spec for the retention janitor
	// (default hourly)
	PruneSchedule string
}

// Trail records command events to SQLite and prunes them on a schedule. It
// implements the session's Recorder interface and is safe for concurrent use.
type Trail struct {
	db        *sql.DB
	retention time.Duration
	cron      *cron.Cron
	mu        sync.Mutex
}

// Open opens or creates the audit database and starts the retention janitor.
func Open(cfg Config) (*Trail, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit database path is required")
	}
	if cfg.Retention == 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.PruneSchedule == "" {
		cfg.PruneSchedule = "@hourly"
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	t := &Trail{
		db:        db,
		retention: cfg.Retention,
		cron:      cron.New(),
	}

	if _, err := t.cron.AddFunc(cfg.PruneSchedule, func() {
		if pruned, err := t.Prune(); err != nil {
			log.Error().Err(err).Msg("Audit prune failed")
		} else if pruned > 0 {
			log.Debug().Int64("pruned", pruned).Msg("Audit events pruned")
		}
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schedule audit prune: %w", err)
	}
	t.cron.Start()

	return t, nil
}

// RecordCommand stores one command decision. Failures are logged, never
// surfaced: the audit trail must not interfere with command execution.
func (t *Trail) RecordCommand(sessionID, command, status, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.db.Exec(
		`INSERT INTO command_events (timestamp, session_id, command, status, detail) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC(), sessionID, command, status, detail,
	)
	if err != nil {
		log.Error().Err(err).Str("command", command).Msg("Failed to record audit event")
	}
}

// Recent returns up to limit events, newest first.
func (t *Trail) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := t.db.Query(
		`SELECT id, timestamp, session_id, command, status, detail
		 FROM command_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.SessionID, &e.Command, &e.Status, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than the retention window and returns how many
// were removed.
func (t *Trail) Prune() (int64, error) {
	cutoff := time.Now().UTC().Add(-t.retention)
	result, err := t.db.Exec(`DELETE FROM command_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	return result.RowsAffected()
}

// Close stops the janitor and closes the database.
func (t *Trail) Close() error {
	ctx := t.cron.Stop()
	<-ctx.Done()
	return t.db.Close()
}
