// Package edit replays a channel's recent messages through a webhook so that a
// message the bot doesn't own can be shown with different content.
package edit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/anyedit/internal/webhooks"
)

const maxWebhookUsername = 80

// Discord refuses webhook usernames containing these words.
var reservedUsername = regexp.MustCompile(`(?i)discord|clyde`)

// Cyrillic lookalikes of the letters swapped out of reserved words.
var homoglyphs = strings.NewReplacer("o", "\u043e", "O", "\u041e", "e", "\u0435", "E", "\u0415")

// Reader is the local read model of channels and their recent messages.
type Reader interface {
	Channel(channelID string) (*discordgo.Channel, error)
	// RecentMessages returns the cached window of the channel, oldest first.
	RecentMessages(channelID string) ([]*discordgo.Message, error)
}

// Post is one message sent through a webhook.
type Post struct {
	Username    string
	AvatarURL   string
	Content     string
	Attachments []*discordgo.MessageAttachment
}

// Poster performs the remote calls of a replication.
type Poster interface {
	// ExecuteWebhook posts through hook, into threadID when it isn't empty.
	// It returns webhooks.ErrNotFound (wrapped) when the webhook is gone.
	ExecuteWebhook(ctx context.Context, hook webhooks.Identity, threadID string, post Post) (*discordgo.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	DeleteMessages(ctx context.Context, channelID string, messageIDs []string) error
}

// Identities hands out the webhook of a channel.
type Identities interface {
	Acquire(ctx context.Context, channelID string) (webhooks.Identity, error)
	Forget(channelID string)
}

// Recorder receives replication results, for metrics. May be nil.
type Recorder interface {
	Replicated(status string, reposted, deleted int)
}

// Request asks for TargetID in ChannelID to be shown with Content.
type Request struct {
	ChannelID  string
	TargetID   string
	Content    string
	EditorID   string
	EditorName string
}

// Engine runs replications. Safe for concurrent use; concurrent edits of the
// same channel are not coordinated with each other.
type Engine struct {
	reader   Reader
	poster   Poster
	hooks    Identities
	recorder Recorder
}

// NewEngine wires an engine to its collaborators.
func NewEngine(reader Reader, poster Poster, hooks Identities, recorder Recorder) *Engine {
	return &Engine{reader: reader, poster: poster, hooks: hooks, recorder: recorder}
}

// Replicate re-posts the target with req.Content and every replayable message
// after it, then deletes the originals. Originals are only deleted once every
// re-post succeeded; a failed re-post removes the copies already sent.
func (e *Engine) Replicate(ctx context.Context, req Request) (Outcome, error) {
	if TooLong(req.Content) {
		return Outcome{}, ErrMessageTooLong
	}

	ch, err := e.reader.Channel(req.ChannelID)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve channel %s: %w", req.ChannelID, err)
	}
	// Webhooks belong to the parent of a thread, posts and deletes to the thread.
	hookChannel, threadID := ch.ID, ""
	if ch.IsThread() {
		hookChannel, threadID = ch.ParentID, ch.ID
	}

	history, err := e.reader.RecentMessages(ch.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("read channel %s history: %w", ch.ID, err)
	}
	set, err := BuildReplaySet(history, req.TargetID)
	if err != nil {
		return Outcome{}, err
	}

	hook, err := e.hooks.Acquire(ctx, hookChannel)
	if err != nil {
		return Outcome{}, err
	}

	posted := make([]string, 0, len(set.Messages))
	retried := false
	for _, m := range set.Messages {
		post := e.postFor(m, req)
		for {
			sent, err := e.poster.ExecuteWebhook(ctx, hook, threadID, post)
			if err == nil {
				if sent != nil {
					posted = append(posted, sent.ID)
				}
				break
			}
			if errors.Is(err, webhooks.ErrNotFound) && !retried {
				retried = true
				slog.Warn("webhook vanished, recreating", "channel_id", hookChannel, "webhook_id", hook.ID)
				e.hooks.Forget(hookChannel)
				var acqErr error
				if hook, acqErr = e.hooks.Acquire(ctx, hookChannel); acqErr == nil {
					continue
				}
				err = errors.Join(err, acqErr)
			}
			e.rollback(ch.ID, posted)
			return Outcome{}, fmt.Errorf("repost message %s: %w", m.ID, err)
		}
	}

	originals := make([]string, len(set.Messages))
	for i, m := range set.Messages {
		originals[i] = m.ID
	}
	if err := e.deleteAll(ctx, ch.ID, originals); err != nil {
		// Every copy is already posted; duplicates beat losing messages.
		return Outcome{}, fmt.Errorf("delete %d original messages: %w", len(originals), err)
	}

	out := Outcome{Status: StatusEdited, Reposted: len(set.Messages), Skipped: set.Skipped}
	if set.Partial() {
		out.Status = StatusPartial
	}
	if e.recorder != nil {
		e.recorder.Replicated(out.Status.String(), out.Reposted, len(originals))
	}
	slog.Info("message edited",
		"channel_id", ch.ID,
		"target_id", req.TargetID,
		"editor_id", req.EditorID,
		"reposted", out.Reposted,
		"skipped", out.Skipped,
	)
	return out, nil
}

func (e *Engine) postFor(m *discordgo.Message, req Request) Post {
	post := Post{
		Username:    DisplayName(m),
		Content:     m.Content,
		Attachments: m.Attachments,
	}
	if m.Author != nil {
		post.AvatarURL = m.Author.AvatarURL("")
	}
	if post.Username == "" {
		post.Username = "unknown user"
	}
	if m.ID == req.TargetID {
		post.Content = req.Content
		switch {
		case m.Author != nil && m.Author.ID == req.EditorID:
			post.Username += " (edited)"
		case req.EditorName != "":
			post.Username += " (edited by " + req.EditorName + ")"
		default:
			post.Username += " (edited)"
		}
	}
	post.Username = truncateRunes(safeUsername(post.Username), maxWebhookUsername)
	return post
}

// safeUsername defuses reserved words in name, keeping its look and length.
func safeUsername(name string) string {
	return reservedUsername.ReplaceAllStringFunc(name, homoglyphs.Replace)
}

func (e *Engine) deleteAll(ctx context.Context, channelID string, ids []string) error {
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return e.poster.DeleteMessage(ctx, channelID, ids[0])
	default:
		return e.poster.DeleteMessages(ctx, channelID, ids)
	}
}

// rollback removes copies posted before a failure. It runs detached from the
// request context so a cancelled request still cleans up.
func (e *Engine) rollback(channelID string, posted []string) {
	if len(posted) == 0 {
		return
	}
	if err := e.deleteAll(context.Background(), channelID, posted); err != nil {
		slog.Error("rollback of reposted messages failed",
			"channel_id", channelID, "messages", posted, "error", err)
		return
	}
	slog.Warn("rolled back reposted messages", "channel_id", channelID, "count", len(posted))
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
