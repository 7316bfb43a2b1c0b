package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/migrations"
)

type migrator interface {
	Up() error
	Down(steps int) error
	Close() error
}

var newMigrator = func(dsn string, logger *zap.Logger) (migrator, error) {
	return migrations.NewRunner(dsn, logger)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error { return m.Up() })
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all of them unless --steps is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 0 {
				return fmt.Errorf("--steps must be >= 0")
			}
			return withMigrator(cmd, func(m migrator) error { return m.Down(steps) })
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back; 0 rolls back everything")

	cmd.AddCommand(up, down)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(migrator) error) (err error) {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	if e.cfg.Database.DSN == "" {
		return errors.New("database.dsn is required to run migrations")
	}
	m, err := newMigrator(e.cfg.Database.DSN, e.logger)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if cerr := m.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close migrations: %w", cerr)
		}
	}()
	if err := fn(m); err != nil {
		return fmt.Errorf("migrate %s: %w", cmd.Name(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", cmd.Name())
	return nil
}
