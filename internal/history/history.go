// Package history persists pin transition events to a local sqlite
// journal so edge activity survives restarts and can be inspected after
// the fact. The journal is advisory: a write failure never disturbs the
// scheduler or the MQTT path.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS pin_events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	at        TEXT    NOT NULL,
	pin       INTEGER NOT NULL,
	label     TEXT    NOT NULL,
	edge      TEXT    NOT NULL,
	up_count  INTEGER NOT NULL,
	down_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS pin_events_at ON pin_events(at);
`

// Event is one recorded settled transition.
type Event struct {
	At        time.Time
	Pin       uint8
	Label     string
	Edge      string // "HIGH" or "LOW"
	UpCount   uint16 // counter values at record time
	DownCount uint16
}

// Store is a sqlite-backed event journal.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// sqlite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends one event.
func (s *Store) Record(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pin_events(at, pin, label, edge, up_count, down_count)
		 VALUES(?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.Pin, e.Label, e.Edge, e.UpCount, e.DownCount,
	)
	return err
}

// Recent returns the newest n events, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, pin, label, edge, up_count, down_count
		 FROM pin_events ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var at string
		if err := rows.Scan(&at, &e.Pin, &e.Label, &e.Edge, &e.UpCount, &e.DownCount); err != nil {
			return nil, err
		}
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", at, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than the retention window and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM pin_events WHERE at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
