package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/adhocore/gronx"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/anyedit/internal/channels/discord"
	"github.com/nextlevelbuilder/anyedit/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials and storage health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("anyedit doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	if err := config.LoadDotEnv(""); err != nil {
		fmt.Printf("  .env:     %s\n", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Config invalid: %s\n", err)
	}

	// Discord
	fmt.Println()
	fmt.Println("  Discord:")
	checkDiscord(cfg)

	// Error store
	fmt.Println()
	fmt.Println("  Error reports:")
	checkErrorStore(cfg)

	// Schedules and listeners
	fmt.Println()
	fmt.Println("  Background:")
	switch expr := cfg.Webhooks.SweepSchedule; {
	case expr == "":
		fmt.Printf("    %-14s off\n", "Webhook sweep:")
	case gronx.New().IsValid(expr):
		next, _ := gronx.NextTick(expr, false)
		fmt.Printf("    %-14s %s (next %s)\n", "Webhook sweep:", expr, next.Format(time.RFC3339))
	default:
		fmt.Printf("    %-14s %s (INVALID)\n", "Webhook sweep:", expr)
	}
	fmt.Printf("    %-14s %s\n", "Metrics:", orOff(cfg.Metrics.Listen))
	if cfg.Telemetry.Enabled {
		fmt.Printf("    %-14s %s\n", "Tracing:", cfg.Telemetry.Endpoint)
	} else {
		fmt.Printf("    %-14s off\n", "Tracing:")
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkDiscord(cfg *config.Config) {
	if cfg.Discord.Token == "" {
		fmt.Printf("    %-14s NOT SET (ANYEDIT_DISCORD_TOKEN)\n", "Token:")
		return
	}
	fmt.Printf("    %-14s set\n", "Token:")

	dc, err := discord.New(cfg.Discord)
	if err != nil {
		fmt.Printf("    %-14s %s\n", "Session:", err)
		return
	}
	app, err := dc.Application()
	if err != nil {
		fmt.Printf("    %-14s FAILED (%s)\n", "Application:", err)
		return
	}
	fmt.Printf("    %-14s %s (%s)\n", "Application:", app.Name, app.ID)
	fmt.Printf("    %-14s %s\n", "Owner:", orOff(discord.OwnerID(app)))
	if cfg.Discord.TestGuildID != "" {
		fmt.Printf("    %-14s guild %s\n", "Commands:", cfg.Discord.TestGuildID)
	} else {
		fmt.Printf("    %-14s global\n", "Commands:")
	}
	fmt.Printf("    %-14s %d messages per channel\n", "Cache:", cfg.Discord.MessageCacheSize)
}

func checkErrorStore(cfg *config.Config) {
	fmt.Printf("    %-14s %s\n", "Store:", cfg.Errors.Store)
	s, err := openErrorStore(storeConfig(cfg))
	if err != nil {
		fmt.Printf("    %-14s OPEN FAILED (%s)\n", "Status:", err)
		return
	}
	if s == nil {
		return
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	recent, err := s.Recent(ctx, 1)
	switch {
	case err != nil:
		fmt.Printf("    %-14s READ FAILED (%s)\n", "Status:", err)
	case len(recent) == 0:
		fmt.Printf("    %-14s OK (no reports)\n", "Status:")
	default:
		fmt.Printf("    %-14s OK (last report %s)\n", "Status:", recent[0].CreatedAt.Local().Format(time.RFC3339))
	}
	fmt.Printf("    %-14s %s\n", "Owner DMs:", onOff(cfg.Errors.NotifyOwner))
}

func orOff(s string) string {
	if s == "" {
		return "off"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
