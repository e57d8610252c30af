package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/scriptorium/internal/event"
)

// schema is safe to run on every open.
const schema = `
CREATE TABLE IF NOT EXISTS published (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id    TEXT NOT NULL,
    kind        INTEGER NOT NULL,
    slug        TEXT NOT NULL DEFAULT '',
    run_id      TEXT NOT NULL DEFAULT '',
    recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS published_slug ON published (slug);
`

// SQLiteLog stores entries in a local SQLite database in WAL mode.
type SQLiteLog struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dbPath and its schema.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY between
	// pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}
	return &SQLiteLog{db: db}, nil
}

// Append inserts one row. A zero RecordedAt is stored as the current time.
func (l *SQLiteLog) Append(ctx context.Context, e Entry) error {
	at := e.RecordedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	const q = `INSERT INTO published (event_id, kind, slug, run_id, recorded_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := l.db.ExecContext(ctx, q, e.EventID, int(e.Kind), e.Slug, e.RunID, at.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("ledger: append %s: %w", e.EventID, err)
	}
	return nil
}

// Entries returns every stored entry in insertion order.
func (l *SQLiteLog) Entries(ctx context.Context) ([]Entry, error) {
	return l.query(ctx, `SELECT event_id, kind, slug, run_id, recorded_at FROM published ORDER BY id`)
}

// BySlug returns the entries recorded for slug, oldest first. Republishing
// a section under the same slug yields one entry per version.
func (l *SQLiteLog) BySlug(ctx context.Context, slug string) ([]Entry, error) {
	return l.query(ctx, `SELECT event_id, kind, slug, run_id, recorded_at FROM published WHERE slug = ? ORDER BY id`, slug)
}

func (l *SQLiteLog) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			kind int
			ts   string
		)
		if err := rows.Scan(&e.EventID, &kind, &e.Slug, &e.RunID, &ts); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		at, err := parseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("ledger: parse timestamp: %w", err)
		}
		e.Kind = event.Kind(kind)
		e.RecordedAt = at
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate entries: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (l *SQLiteLog) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("ledger: close: %w", err)
	}
	return nil
}

// parseTimestamp accepts what modernc.org/sqlite hands back for a TIMESTAMP
// column: the RFC 3339 text written by Append, or SQLite's own DateTime form.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
