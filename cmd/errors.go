package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/anyedit/internal/channels"
	"github.com/nextlevelbuilder/anyedit/internal/store"
)

func errorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Inspect failures reported to the operator",
	}
	cmd.AddCommand(errorsListCmd())
	return cmd
}

func errorsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent error reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openErrorStore(storeConfig(cfg))
			if err != nil {
				return err
			}
			if s == nil {
				return fmt.Errorf("error reports are not persisted (errors.store is %q)", cfg.Errors.Store)
			}
			defer s.Close()

			records, err := s.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read error reports: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("No error reports.")
				return nil
			}
			for _, r := range records {
				fmt.Printf("%s  %-11s session=%s channel=%s user=%s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Kind, r.SessionID, r.ChannelID, r.UserID)
				fmt.Printf("    %s\n", channels.Truncate(firstLine(r.Message), 160))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultRecentLimit, "number of reports to show")
	return cmd
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
