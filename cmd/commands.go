package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/anyedit/internal/channels/discord"
)

func commandsCmd() *cobra.Command {
	var guildID string

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "Manage the bot's application commands",
	}
	cmd.PersistentFlags().StringVar(&guildID, "guild", "", "guild to target (default: discord.test_guild_id, else global)")

	target := func() (*discord.Channel, string, string, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, "", "", err
		}
		dc, err := discord.New(cfg.Discord)
		if err != nil {
			return nil, "", "", err
		}
		app, err := dc.Application()
		if err != nil {
			return nil, "", "", err
		}
		guild := guildID
		if guild == "" {
			guild = cfg.Discord.TestGuildID
		}
		return dc, app.ID, guild, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "register",
		Short: "Register /edit and the Edit Message context command",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			dc, appID, guild, err := target()
			if err != nil {
				return err
			}
			created, err := dc.RegisterCommands(cmd.Context(), appID, guild)
			if err != nil {
				return err
			}
			for _, c := range created {
				fmt.Printf("  %-20s %s\n", c.Name, c.ID)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every application command",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			dc, appID, guild, err := target()
			if err != nil {
				return err
			}
			return dc.ClearCommands(cmd.Context(), appID, guild)
		},
	})

	return cmd
}
