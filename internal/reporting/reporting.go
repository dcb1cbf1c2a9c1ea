// Package reporting delivers unexpected session failures to the operator.
package reporting

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/anyedit/internal/store"
)

// Report describes one failure the user only saw a generic apology for.
type Report struct {
	ID        uuid.UUID
	SessionID string
	Kind      string // interaction kind, e.g. "command" or "form-submit"
	GuildID   string
	ChannelID string
	UserID    string
	Err       error
	At        time.Time
}

// Sink receives reports. Implementations must not block for long and must
// swallow their own failures: there is nobody left to report them to.
type Sink interface {
	Report(ctx context.Context, r Report)
}

// Multi fans a report out to every sink in order.
type Multi []Sink

func (m Multi) Report(ctx context.Context, r Report) {
	for _, s := range m {
		if s != nil {
			s.Report(ctx, r)
		}
	}
}

// LogSink writes reports as error log lines.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink logs through logger, or slog.Default() when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(ctx context.Context, r Report) {
	s.logger.ErrorContext(ctx, "interaction failed",
		"report_id", r.ID,
		"session_id", r.SessionID,
		"kind", r.Kind,
		"guild_id", r.GuildID,
		"channel_id", r.ChannelID,
		"user_id", r.UserID,
		"error", r.Err,
	)
}

// StoreSink persists reports to an error store.
type StoreSink struct {
	store store.ErrorStore
}

func NewStoreSink(s store.ErrorStore) *StoreSink {
	return &StoreSink{store: s}
}

func (s *StoreSink) Report(ctx context.Context, r Report) {
	rec := store.ErrorRecord{
		ID:        r.ID,
		SessionID: r.SessionID,
		Kind:      r.Kind,
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		UserID:    r.UserID,
		Message:   errString(r.Err),
		CreatedAt: r.At,
	}
	if err := s.store.Record(ctx, rec); err != nil {
		slog.Error("persist error report", "report_id", r.ID, "error", err)
	}
}

// New fills in the ID and timestamp of a report.
func New(sessionID, kind string, err error) Report {
	return Report{
		ID:        uuid.New(),
		SessionID: sessionID,
		Kind:      kind,
		Err:       err,
		At:        time.Now().UTC(),
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
