// Package webhooks owns the per-channel webhook the bot uses to post messages
// under other users' names and avatars.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/singleflight"
)

// DefaultName is the name given to webhooks the bot creates.
const DefaultName = "any message editor"

var (
	// ErrUnavailable wraps any failure to list or create a channel's webhook.
	ErrUnavailable = errors.New("webhook unavailable")

	// ErrNotFound is returned by transports when a cached webhook no longer
	// exists remotely.
	ErrNotFound = errors.New("webhook not found")
)

// Identity is the webhook bound to one channel. Threads share their parent's.
type Identity struct {
	ID        string
	Token     string
	ChannelID string
}

// Remote lists and creates channel webhooks.
type Remote interface {
	ChannelWebhooks(ctx context.Context, channelID string) ([]*discordgo.Webhook, error)
	CreateWebhook(ctx context.Context, channelID, name string) (*discordgo.Webhook, error)
}

// Observer is notified when the cache has to create a webhook. May be nil.
type Observer interface {
	WebhookCreated(channelID string)
}

// Cache lazily resolves one Identity per channel and keeps it for reuse.
// A miss for a given channel runs as a single flight: concurrent callers for
// the same channel wait for and share one lookup/creation, while misses for
// different channels proceed in parallel. Safe for concurrent use.
type Cache struct {
	remote   Remote
	appID    string
	name     string
	observer Observer

	mu      sync.RWMutex
	entries map[string]Identity // channelID → identity
	flights singleflight.Group
}

// NewCache creates a cache that adopts webhooks owned by appID and otherwise
// creates new ones called name.
func NewCache(remote Remote, appID, name string, observer Observer) *Cache {
	if name == "" {
		name = DefaultName
	}
	return &Cache{
		remote:   remote,
		appID:    appID,
		name:     name,
		observer: observer,
		entries:  make(map[string]Identity),
	}
}

// Acquire returns the channel's webhook, listing or creating it on a miss.
func (c *Cache) Acquire(ctx context.Context, channelID string) (Identity, error) {
	if id, ok := c.lookup(channelID); ok {
		return id, nil
	}

	v, err, shared := c.flights.Do(channelID, func() (any, error) {
		// A flight that finished just before this one started already stored it.
		if id, ok := c.lookup(channelID); ok {
			return id, nil
		}
		id, err := c.resolve(ctx, channelID)
		if err != nil {
			return Identity{}, err
		}
		c.mu.Lock()
		c.entries[channelID] = id
		c.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: channel %s: %w", ErrUnavailable, channelID, err)
	}
	if shared {
		slog.Debug("webhook lookup shared", "channel_id", channelID)
	}
	return v.(Identity), nil
}

// Forget drops the cached webhook for channelID so the next Acquire resolves
// it again. Used after a transport reported ErrNotFound.
func (c *Cache) Forget(channelID string) {
	c.mu.Lock()
	delete(c.entries, channelID)
	c.mu.Unlock()
}

// InvalidateIfStale re-lists the channel's webhooks and evicts the cached
// entry when none owned by this application remain. Channels that aren't
// cached are ignored.
func (c *Cache) InvalidateIfStale(ctx context.Context, channelID string) error {
	cached, ok := c.lookup(channelID)
	if !ok {
		return nil
	}

	hooks, err := c.remote.ChannelWebhooks(ctx, channelID)
	if err != nil {
		return fmt.Errorf("%w: list channel %s: %w", ErrUnavailable, channelID, err)
	}
	for _, h := range hooks {
		if c.owned(h) {
			return nil
		}
	}

	c.mu.Lock()
	// Only evict what we checked; a concurrent Acquire may have replaced it.
	if cur, ok := c.entries[channelID]; ok && cur.ID == cached.ID {
		delete(c.entries, channelID)
	}
	c.mu.Unlock()
	slog.Info("evicted stale webhook", "channel_id", channelID, "webhook_id", cached.ID)
	return nil
}

// Channels returns the IDs of all channels with a cached webhook.
func (c *Cache) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}

func (c *Cache) lookup(channelID string) (Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[channelID]
	return id, ok
}

func (c *Cache) resolve(ctx context.Context, channelID string) (Identity, error) {
	hooks, err := c.remote.ChannelWebhooks(ctx, channelID)
	if err != nil {
		return Identity{}, fmt.Errorf("list webhooks: %w", err)
	}
	for _, h := range hooks {
		// Webhooks we own but can't execute (no token) are useless here.
		if c.owned(h) && h.Token != "" {
			slog.Debug("adopted existing webhook", "channel_id", channelID, "webhook_id", h.ID)
			return Identity{ID: h.ID, Token: h.Token, ChannelID: channelID}, nil
		}
	}

	h, err := c.remote.CreateWebhook(ctx, channelID, c.name)
	if err != nil {
		return Identity{}, fmt.Errorf("create webhook: %w", err)
	}
	if h == nil || h.Token == "" {
		return Identity{}, fmt.Errorf("create webhook: response has no token")
	}
	if c.observer != nil {
		c.observer.WebhookCreated(channelID)
	}
	slog.Info("created webhook", "channel_id", channelID, "webhook_id", h.ID)
	return Identity{ID: h.ID, Token: h.Token, ChannelID: channelID}, nil
}

func (c *Cache) owned(h *discordgo.Webhook) bool {
	return h != nil && h.ApplicationID != "" && h.ApplicationID == c.appID
}
