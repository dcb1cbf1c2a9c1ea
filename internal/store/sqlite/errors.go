// Package sqlite stores error reports in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/nextlevelbuilder/anyedit/internal/store"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "anyedit.db"

const schema = `
CREATE TABLE IF NOT EXISTS error_reports (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	guild_id   TEXT NOT NULL DEFAULT '',
	channel_id TEXT NOT NULL DEFAULT '',
	user_id    TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_error_reports_created ON error_reports(created_at);
`

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteErrorStore implements store.ErrorStore on SQLite.
type SQLiteErrorStore struct {
	db *sql.DB
}

// OpenErrorStore opens (creating if needed) the database at path.
func OpenErrorStore(path string) (*SQLiteErrorStore, error) {
	if path == "" {
		path = DefaultPath
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Set journal mode to WAL so `anyedit errors list` can read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteErrorStore{db: db}, nil
}

func (s *SQLiteErrorStore) Record(ctx context.Context, rec store.ErrorRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO error_reports (id, session_id, kind, guild_id, channel_id, user_id, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.SessionID, rec.Kind, rec.GuildID, rec.ChannelID, rec.UserID, rec.Message,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert error report: %w", err)
	}
	return nil
}

func (s *SQLiteErrorStore) Recent(ctx context.Context, limit int) ([]store.ErrorRecord, error) {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, kind, guild_id, channel_id, user_id, message, created_at
		 FROM error_reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query error reports: %w", err)
	}
	defer rows.Close()

	var out []store.ErrorRecord
	for rows.Next() {
		var (
			rec    store.ErrorRecord
			id, at string
		)
		if err := rows.Scan(&id, &rec.SessionID, &rec.Kind, &rec.GuildID, &rec.ChannelID, &rec.UserID, &rec.Message, &at); err != nil {
			return nil, fmt.Errorf("scan error report: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse report id %q: %w", id, err)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("parse report time %q: %w", at, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteErrorStore) Close() error { return s.db.Close() }
