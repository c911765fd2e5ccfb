package cli

import (
	"fmt"
	"time"

	"github.com/mroshb/group_quiz_bot/internal/config"
	"github.com/mroshb/group_quiz_bot/internal/database"
	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Maintain the audit log database",
	}

	var retention time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit entries older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if !cfg.HasAuditDB() {
				return fmt.Errorf("no audit database configured")
			}
			db, err := database.Connect(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			n, err := database.PruneAuditLog(db, retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries\n", n)
			return nil
		},
	}
	prune.Flags().DurationVar(&retention, "older-than", 30*24*time.Hour, "retention window")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the audit log table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if !cfg.HasAuditDB() {
				return fmt.Errorf("no audit database configured")
			}
			db, err := database.Connect(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)
			return database.AutoMigrate(db)
		},
	}

	cmd.AddCommand(prune, migrate)
	return cmd
}
