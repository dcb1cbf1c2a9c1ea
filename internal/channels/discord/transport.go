package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/anyedit/internal/edit"
	"github.com/nextlevelbuilder/anyedit/internal/webhooks"
)

const (
	// maxAttachmentSize is the upload limit of a server without boosts.
	maxAttachmentSize = 25 << 20

	// maxBulkDelete is the most messages one bulk delete accepts.
	maxBulkDelete = 100

	// bulkDeleteMaxAge is how old a message bulk delete still accepts, less a
	// minute for clock skew.
	bulkDeleteMaxAge = 14*24*time.Hour - time.Minute
)

// Transport performs the REST calls of webhook management and replication.
type Transport struct {
	session *discordgo.Session
	client  *http.Client
}

func NewTransport(session *discordgo.Session) *Transport {
	client := session.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{session: session, client: client}
}

func (t *Transport) ChannelWebhooks(ctx context.Context, channelID string) ([]*discordgo.Webhook, error) {
	return t.session.ChannelWebhooks(channelID, discordgo.WithContext(ctx))
}

func (t *Transport) CreateWebhook(ctx context.Context, channelID, name string) (*discordgo.Webhook, error) {
	return t.session.WebhookCreate(channelID, name, "", discordgo.WithContext(ctx))
}

// ExecuteWebhook posts through hook and waits for the created message.
// Attachments are downloaded and uploaded again; nobody is pinged.
func (t *Transport) ExecuteWebhook(ctx context.Context, hook webhooks.Identity, threadID string, post edit.Post) (*discordgo.Message, error) {
	files, err := t.download(ctx, post.Attachments)
	if err != nil {
		return nil, err
	}

	params := &discordgo.WebhookParams{
		Content:   post.Content,
		Username:  post.Username,
		AvatarURL: post.AvatarURL,
		Files:     files,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}

	var msg *discordgo.Message
	if threadID != "" {
		msg, err = t.session.WebhookThreadExecute(hook.ID, hook.Token, true, threadID, params, discordgo.WithContext(ctx))
	} else {
		msg, err = t.session.WebhookExecute(hook.ID, hook.Token, true, params, discordgo.WithContext(ctx))
	}
	if err != nil {
		if isUnknownWebhook(err) {
			return nil, fmt.Errorf("%w: %s: %w", webhooks.ErrNotFound, hook.ID, err)
		}
		return nil, fmt.Errorf("execute webhook %s: %w", hook.ID, err)
	}
	return msg, nil
}

func (t *Transport) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return t.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

// DeleteMessages bulk deletes messageIDs, in chunks of the API limit.
// Messages too old for bulk delete and lone leftovers go one at a time.
func (t *Transport) DeleteMessages(ctx context.Context, channelID string, messageIDs []string) error {
	batches, singles := planDeletes(messageIDs, time.Now())
	for _, batch := range batches {
		if err := t.session.ChannelMessagesBulkDelete(channelID, batch, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	for _, id := range singles {
		if err := t.session.ChannelMessageDelete(channelID, id, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	return nil
}

// planDeletes splits ids into bulk delete batches of 2 to maxBulkDelete
// messages and the ids that must be deleted one by one.
func planDeletes(ids []string, now time.Time) (batches [][]string, singles []string) {
	var recent []string
	for _, id := range ids {
		ts, err := discordgo.SnowflakeTimestamp(id)
		if err != nil || now.Sub(ts) > bulkDeleteMaxAge {
			singles = append(singles, id)
			continue
		}
		recent = append(recent, id)
	}
	for len(recent) > 0 {
		n := min(len(recent), maxBulkDelete)
		if n == 1 {
			singles = append(singles, recent[0])
			break
		}
		batches = append(batches, recent[:n])
		recent = recent[n:]
	}
	return batches, singles
}

func (t *Transport) download(ctx context.Context, attachments []*discordgo.MessageAttachment) ([]*discordgo.File, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	files := make([]*discordgo.File, 0, len(attachments))
	for _, a := range attachments {
		if a == nil || a.URL == "" {
			continue
		}
		data, err := t.fetch(ctx, a.URL)
		if err != nil {
			return nil, fmt.Errorf("download attachment %s: %w", a.Filename, err)
		}
		files = append(files, &discordgo.File{
			Name:        a.Filename,
			ContentType: a.ContentType,
			Reader:      bytes.NewReader(data),
		})
	}
	return files, nil
}

func (t *Transport) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxAttachmentSize {
		return nil, fmt.Errorf("larger than %d bytes", maxAttachmentSize)
	}
	return data, nil
}

func isUnknownWebhook(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) &&
		restErr.Message != nil &&
		restErr.Message.Code == discordgo.ErrCodeUnknownWebhook
}
