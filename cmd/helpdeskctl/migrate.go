package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vicmordi/AIHelpdesk/internal/persistence"
)

var migrationsDir string

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "", "migrations directory (defaults to POSTGRES_MIGRATIONS_DIR)")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations",
	Long: `Apply every .sql file in the migrations directory that has not run yet.

Examples:
  POSTGRES_DSN=postgres://localhost/helpdesk helpdeskctl migrate
  helpdeskctl migrate --dir ./migrations`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if !pg.Enabled() {
		return errors.New("POSTGRES_DSN is required to run migrations")
	}

	dir := migrationsDir
	if dir == "" {
		dir = cfg.Postgres.MigrationsDir
	}
	applied, err := persistence.RunMigrations(cmd.Context(), pg.Pool, dir, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
	return nil
}
