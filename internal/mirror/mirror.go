// Package mirror keeps a durable per-user convenience copy of log entries,
// independent of the remote store. It backs the "download/clear my log"
// features and is explicitly not reconciled with the remote store: entries
// are appended when created and patched only when the caller already holds
// the updated record.
package mirror

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"geoguesser-backend/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS mirror_entries (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    user_name  TEXT NOT NULL,
    log_id     TEXT NOT NULL,
    entry_json TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_mirror_user ON mirror_entries(user_name, seq);
CREATE INDEX IF NOT EXISTS idx_mirror_log ON mirror_entries(user_name, log_id);
`

// Store is the SQLite-backed mirror database.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open mirror db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mirror db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init mirror schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores a copy of a freshly created log entry.
func (s *Store) Append(userName string, entry models.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal mirror entry: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO mirror_entries (user_name, log_id, entry_json) VALUES (?, ?, ?)`,
		userName, entry.ID.Hex(), string(data),
	)
	if err != nil {
		return fmt.Errorf("append mirror entry: %w", err)
	}
	return nil
}

// Patch replaces the mirrored copy of an entry the caller just updated
// remotely. A missing row is not an error: the mirror may have been cleared.
func (s *Store) Patch(userName, logID string, entry models.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal mirror entry: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE mirror_entries SET entry_json = ? WHERE user_name = ? AND log_id = ?`,
		string(data), userName, logID,
	)
	if err != nil {
		return fmt.Errorf("patch mirror entry: %w", err)
	}
	return nil
}

// List returns the user's mirrored entries in insertion order.
func (s *Store) List(userName string) ([]models.LogEntry, error) {
	rows, err := s.db.Query(
		`SELECT entry_json FROM mirror_entries WHERE user_name = ? ORDER BY seq ASC`,
		userName,
	)
	if err != nil {
		return nil, fmt.Errorf("list mirror entries: %w", err)
	}
	defer rows.Close()

	entries := []models.LogEntry{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan mirror entry: %w", err)
		}
		var entry models.LogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode mirror entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Clear drops all of one user's mirrored entries. The remote store is untouched.
func (s *Store) Clear(userName string) error {
	if _, err := s.db.Exec(`DELETE FROM mirror_entries WHERE user_name = ?`, userName); err != nil {
		return fmt.Errorf("clear mirror entries: %w", err)
	}
	return nil
}
