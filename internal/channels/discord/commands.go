package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/anyedit/pkg/protocol"
)

// Commands returns the application commands of the bot. Both are hidden from
// members without MANAGE_MESSAGES and unavailable in DMs.
func Commands() []*discordgo.ApplicationCommand {
	perms := int64(discordgo.PermissionManageMessages)
	dm := false
	return []*discordgo.ApplicationCommand{
		{
			Name:                     protocol.CommandEdit,
			Type:                     discordgo.ChatApplicationCommand,
			Description:              "edit a recent message in this channel",
			DefaultMemberPermissions: &perms,
			DMPermission:             &dm,
		},
		{
			Name:                     protocol.CommandEditMessage,
			Type:                     discordgo.MessageApplicationCommand,
			DefaultMemberPermissions: &perms,
			DMPermission:             &dm,
		},
	}
}

// RegisterCommands replaces the application's commands with Commands(), in
// guildID only when it isn't empty.
func (c *Channel) RegisterCommands(ctx context.Context, appID, guildID string) ([]*discordgo.ApplicationCommand, error) {
	created, err := c.session.ApplicationCommandBulkOverwrite(appID, guildID, Commands(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	slog.Info("discord commands registered", "count", len(created), "guild_id", guildID)
	return created, nil
}

// ClearCommands removes every application command, in guildID only when it
// isn't empty.
func (c *Channel) ClearCommands(ctx context.Context, appID, guildID string) error {
	if _, err := c.session.ApplicationCommandBulkOverwrite(appID, guildID, []*discordgo.ApplicationCommand{}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("clear commands: %w", err)
	}
	slog.Info("discord commands cleared", "guild_id", guildID)
	return nil
}
