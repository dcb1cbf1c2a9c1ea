// Package discord connects the bot to Discord through discordgo: the gateway
// session and its state cache, the REST transport, and interaction responses.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/anyedit/internal/channels"
	"github.com/nextlevelbuilder/anyedit/internal/config"
)

// interactionTimeout bounds one interaction. Interaction tokens stay valid
// for 15 minutes.
const interactionTimeout = 10 * time.Minute

// Handlers receive the gateway events the bot acts on. Nil fields are skipped.
type Handlers struct {
	Interaction    func(ctx context.Context, i *discordgo.Interaction)
	WebhooksUpdate func(ctx context.Context, channelID string)
	Ready          func(selfID string)
}

// Channel connects to Discord via the Bot API using gateway events.
type Channel struct {
	*channels.BaseChannel
	session  *discordgo.Session
	config   config.DiscordConfig
	reads    *ReadModel
	handlers Handlers

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	botUserID string
	inflight  sync.WaitGroup
}

// New creates a new Discord channel from config. Nothing connects until Start.
func New(cfg config.DiscordConfig) (*Channel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is empty (set ANYEDIT_DISCORD_TOKEN)")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildWebhooks
	if cfg.RequestMembers {
		session.Identify.Intents |= discordgo.IntentsGuildMembers
	}

	size := cfg.MessageCacheSize
	if size <= 0 {
		size = config.DefaultMessageCacheSize
	}
	session.State.MaxMessageCount = min(size, config.MaxMessageCacheSize)
	session.State.TrackMembers = true

	return &Channel{
		BaseChannel: channels.NewBaseChannel("discord"),
		session:     session,
		config:      cfg,
		reads:       NewReadModel(session.State),
	}, nil
}

// Session returns the underlying discordgo session.
func (c *Channel) Session() *discordgo.Session { return c.session }

// ReadModel returns the state-backed read model.
func (c *Channel) ReadModel() *ReadModel { return c.reads }

// SetHandlers installs the event handlers. Call before Start.
func (c *Channel) SetHandlers(h Handlers) { c.handlers = h }

// Application fetches the bot's own application, for its ID and owner.
func (c *Channel) Application() (*discordgo.Application, error) {
	app, err := c.session.Application("@me")
	if err != nil {
		return nil, fmt.Errorf("fetch discord application: %w", err)
	}
	return app, nil
}

// Start opens the Discord gateway connection and begins receiving events.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting discord bot")

	c.mu.Lock()
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Unlock()

	c.session.AddHandler(c.handleReady)
	c.session.AddHandler(c.handleGuildCreate)
	c.session.AddHandler(c.handleInteraction)
	c.session.AddHandler(c.handleWebhooksUpdate)
	c.session.AddHandler(c.reads.onMessageUpdate)
	c.session.AddHandler(c.reads.onReactionAdd)
	c.session.AddHandler(c.reads.onReactionRemove)
	c.session.AddHandler(c.reads.onReactionRemoveAll)

	c.setRunning(true)
	if err := c.session.Open(); err != nil {
		c.setRunning(false)
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Stop closes the Discord gateway connection and waits for interactions that
// are still being handled, until ctx expires.
func (c *Channel) Stop(ctx context.Context) error {
	slog.Info("stopping discord bot")
	c.setRunning(false)
	err := c.session.Close()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("discord: interactions still running at shutdown")
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	return err
}

// setRunning flips the running flag under c.mu, so no interaction is admitted
// once Stop started waiting for the in-flight ones.
func (c *Channel) setRunning(running bool) {
	c.mu.Lock()
	c.SetRunning(running)
	c.mu.Unlock()
}

// admit registers an interaction as in flight, unless the channel is stopped.
func (c *Channel) admit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.IsRunning() {
		return false
	}
	c.inflight.Add(1)
	return true
}

func (c *Channel) baseContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *Channel) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	c.mu.Lock()
	c.botUserID = r.User.ID
	c.mu.Unlock()
	slog.Info("discord bot connected", "username", r.User.Username, "id", r.User.ID, "guilds", len(r.Guilds))
	if c.handlers.Ready != nil {
		c.handlers.Ready(r.User.ID)
	}
}

// handleGuildCreate asks for the full member list so nicknames resolve from
// the cache, when configured.
func (c *Channel) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if !c.config.RequestMembers || g.Guild == nil || g.Unavailable {
		return
	}
	if err := s.RequestGuildMembers(g.ID, "", 0, "", false); err != nil {
		slog.Warn("discord: request guild members failed", "guild_id", g.ID, "error", err)
		return
	}
	slog.Debug("discord guild members requested", "guild_id", g.ID)
}

func (c *Channel) handleInteraction(_ *discordgo.Session, ev *discordgo.InteractionCreate) {
	if c.handlers.Interaction == nil || ev.Interaction == nil {
		return
	}
	if !c.admit() {
		slog.Debug("discord interaction dropped, channel stopped", "interaction_id", ev.ID)
		return
	}
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(c.baseContext(), interactionTimeout)
	defer cancel()

	slog.Debug("discord interaction received",
		"interaction_id", ev.ID,
		"type", ev.Type.String(),
		"channel_id", ev.ChannelID,
		"guild_id", ev.GuildID,
	)
	c.handlers.Interaction(ctx, ev.Interaction)
}

func (c *Channel) handleWebhooksUpdate(_ *discordgo.Session, ev *discordgo.WebhooksUpdate) {
	if c.handlers.WebhooksUpdate == nil || ev.ChannelID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(c.baseContext(), 30*time.Second)
	defer cancel()
	c.handlers.WebhooksUpdate(ctx, ev.ChannelID)
}

// BotUserID returns the bot's user ID once connected.
func (c *Channel) BotUserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botUserID
}
