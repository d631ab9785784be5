// Package history keeps a persistent ledger of download attempts in a local
// SQLite database. The queue itself never revisits finished items, so the
// ledger is the only durable record of what was fetched and what failed.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	locator     TEXT NOT NULL,
	local_path  TEXT NOT NULL,
	description TEXT NOT NULL,
	bytes       INTEGER NOT NULL,
	ok          INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS downloads_at ON downloads(at);
`

// Row is one recorded download attempt.
type Row struct {
	ID          int64
	Locator     string
	LocalPath   string
	Description string
	Bytes       int64
	OK          bool
	Error       string
	At          time.Time
}

// Ledger is an append-mostly download log backed by SQLite.
type Ledger struct {
	db *sql.DB
}

// Open opens (and if needed creates) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record appends one attempt. transferErr nil means the download succeeded.
func (l *Ledger) Record(locator, localPath, description string, bytes int64, transferErr error) error {
	ok := 0
	errText := ""
	if transferErr == nil {
		ok = 1
	} else {
		errText = transferErr.Error()
	}
	_, err := l.db.Exec(
		`INSERT INTO downloads (locator, local_path, description, bytes, ok, error, at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		locator, localPath, description, bytes, ok, errText, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first.
func (l *Ledger) Recent(limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(
		`SELECT id, locator, local_path, description, bytes, ok, error, at FROM downloads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		var ok int
		var at string
		if err := rows.Scan(&r.ID, &r.Locator, &r.LocalPath, &r.Description, &r.Bytes, &ok, &r.Error, &at); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		r.OK = ok == 1
		if t, err := time.Parse(time.RFC3339, at); err == nil {
			r.At = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}
