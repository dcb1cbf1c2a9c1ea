package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/anyedit/internal/store"
)

var errorReportsSchema = []string{`
CREATE TABLE IF NOT EXISTS error_reports (
	id         UUID PRIMARY KEY,
	session_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	guild_id   TEXT NOT NULL DEFAULT '',
	channel_id TEXT NOT NULL DEFAULT '',
	user_id    TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_error_reports_created ON error_reports (created_at DESC)`,
}

// PGErrorStore implements store.ErrorStore backed by Postgres.
type PGErrorStore struct {
	db *sql.DB
}

// NewPGErrorStore opens dsn and makes sure the error_reports table exists.
func NewPGErrorStore(dsn string) (*PGErrorStore, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, err
	}
	for _, stmt := range errorReportsSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create error_reports: %w", err)
		}
	}
	return &PGErrorStore{db: db}, nil
}

func (s *PGErrorStore) Record(ctx context.Context, rec store.ErrorRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.Must(uuid.NewV7())
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO error_reports (id, session_id, kind, guild_id, channel_id, user_id, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.SessionID, rec.Kind, rec.GuildID, rec.ChannelID, rec.UserID, rec.Message, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert error report: %w", err)
	}
	return nil
}

func (s *PGErrorStore) Recent(ctx context.Context, limit int) ([]store.ErrorRecord, error) {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, kind, guild_id, channel_id, user_id, message, created_at
		 FROM error_reports ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query error reports: %w", err)
	}
	defer rows.Close()

	var out []store.ErrorRecord
	for rows.Next() {
		var rec store.ErrorRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Kind, &rec.GuildID, &rec.ChannelID, &rec.UserID, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error report: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGErrorStore) Close() error { return s.db.Close() }
