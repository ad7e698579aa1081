package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/your-org/rollcall/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "Only print the current schema version")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	dsn := cfg.Database.DSN()

	if !mustGetBool(cmd, "status") {
		if err := storage.Migrate(ctx, dsn); err != nil {
			return err
		}
	}

	v, err := storage.MigrationVersion(ctx, dsn)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
