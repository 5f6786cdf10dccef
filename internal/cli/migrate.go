package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindtree/internal/store"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		Long:  "Apply the pending *.up.sql migrations to MINDTREE_DATABASE_URL. Serving with the postgres store does this too.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := store.OpenSQL(cmd.Context(), cfg.DatabaseURL, 1)
			if err != nil {
				return err
			}
			defer db.Close()

			migrations, err := store.MigrationFS(cfg.MigrationsDir)
			if err != nil {
				return err
			}
			applied, err := store.ApplyMigrations(cmd.Context(), db, migrations)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
				return nil
			}
			for _, version := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", version)
			}
			return nil
		},
	}
	return cmd
}
