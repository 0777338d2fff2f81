package main

import (
	"github.com/spf13/cobra"

	"ezclaim/internal/platform/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending Postgres migrations",
	Long: `Apply every embedded schema migration that has not run yet.

Requires DATABASE_URL. Safe to run repeatedly: applied versions are recorded
in schema_migrations.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	db, err := postgres.Open(ctx, postgresConfig(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := postgres.Migrate(ctx, db, log)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "migrations complete", "applied", applied)
	return nil
}
