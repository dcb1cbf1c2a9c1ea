package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultRecentLimit is used when Recent is called with a non-positive limit.
const DefaultRecentLimit = 20

// ErrorRecord is one persisted operator error report.
type ErrorRecord struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	GuildID   string    `json:"guild_id,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorStore persists error reports for later inspection by the operator.
type ErrorStore interface {
	Record(ctx context.Context, rec ErrorRecord) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]ErrorRecord, error)
	Close() error
}

// StoreConfig selects and configures the error store backend.
type StoreConfig struct {
	Backend     string // "file" (default), "sqlite", "postgres" or "none"
	Path        string // file or sqlite path
	PostgresDSN string
}
