package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/anyedit/internal/channels"
	"github.com/nextlevelbuilder/anyedit/internal/channels/discord"
	"github.com/nextlevelbuilder/anyedit/internal/edit"
	"github.com/nextlevelbuilder/anyedit/internal/interaction"
	"github.com/nextlevelbuilder/anyedit/internal/metrics"
	"github.com/nextlevelbuilder/anyedit/internal/reporting"
	"github.com/nextlevelbuilder/anyedit/internal/tracing"
	"github.com/nextlevelbuilder/anyedit/internal/webhooks"
)

const shutdownTimeout = 15 * time.Second

func runBot() {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Debug("config loaded", "path", resolveConfigPath(), "config", cfg.MaskedCopy())

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen); err != nil {
				slog.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	errStore, err := openErrorStore(storeConfig(cfg))
	if err != nil {
		slog.Error("failed to open error store", "store", cfg.Errors.Store, "error", err)
		os.Exit(1)
	}
	if errStore != nil {
		defer errStore.Close()
	}

	dc, err := discord.New(cfg.Discord)
	if err != nil {
		slog.Error("failed to create discord channel", "error", err)
		os.Exit(1)
	}
	app, err := dc.Application()
	if err != nil {
		slog.Error("failed to resolve discord application", "error", err)
		os.Exit(1)
	}
	ownerID := discord.OwnerID(app)

	// Replication: webhooks from the cache, everything else through REST.
	transport := discord.NewTransport(dc.Session())
	hooks := webhooks.NewCache(transport, app.ID, cfg.Edit.WebhookName, m)
	engine := edit.NewEngine(dc.ReadModel(), transport, hooks, m)

	sinks := reporting.Multi{reporting.NewLogSink(nil)}
	if errStore != nil {
		sinks = append(sinks, reporting.NewStoreSink(errStore))
	}
	if cfg.Errors.NotifyOwner && ownerID != "" {
		sinks = append(sinks, discord.NewOwnerNotifier(dc.Session(), ownerID))
	}

	pipeline := interaction.New(interaction.Config{
		Responder:   discord.NewResponder(dc.Session()),
		Reader:      dc.ReadModel(),
		Permissions: dc.ReadModel(),
		Replicator:  engine,
		Reports:     sinks,
		Limiter:     channels.NewUserRateLimiter(cfg.Edit.RatePerMinute, cfg.Edit.Burst),
		Recorder:    m,
	})

	dc.SetHandlers(discord.Handlers{
		Interaction: func(ctx context.Context, i *discordgo.Interaction) {
			sess := pipeline.Handle(ctx, i)
			slog.Debug("interaction done", "session_id", sess.ID, "kind", sess.Kind, "state", sess.State())
		},
		WebhooksUpdate: func(ctx context.Context, channelID string) {
			if err := hooks.InvalidateIfStale(ctx, channelID); err != nil {
				slog.Warn("webhook check failed", "channel_id", channelID, "error", err)
			}
		},
		Ready: pipeline.SetSelfID,
	})

	if _, err := dc.RegisterCommands(ctx, app.ID, cfg.Discord.TestGuildID); err != nil {
		slog.Error("failed to register commands", "error", err)
		os.Exit(1)
	}

	if cfg.Webhooks.SweepSchedule != "" {
		sweeper, err := webhooks.NewSweeper(hooks, cfg.Webhooks.SweepSchedule)
		if err != nil {
			slog.Error("invalid webhook sweep", "error", err)
			os.Exit(1)
		}
		go sweeper.Run(ctx)
	}

	var ch channels.Channel = dc
	if err := ch.Start(ctx); err != nil {
		slog.Error("failed to start channel", "channel", ch.Name(), "error", err)
		os.Exit(1)
	}

	slog.Info("anyedit started",
		"version", Version,
		"application_id", app.ID,
		"owner_id", ownerID,
		"test_guild_id", cfg.Discord.TestGuildID,
		"error_store", cfg.Errors.Store,
		"message_cache_size", cfg.Discord.MessageCacheSize,
	)

	<-ctx.Done()
	slog.Info("graceful shutdown initiated")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ch.Stop(stopCtx); err != nil {
		slog.Warn("channel stop failed", "channel", ch.Name(), "error", err)
	}
	if err := shutdownTracing(stopCtx); err != nil {
		slog.Warn("tracing shutdown failed", "error", err)
	}
	slog.Info("anyedit stopped")
}
