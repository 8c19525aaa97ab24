// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/internal/store"
)

// Migrator is the schema migration surface the migrate commands use.
type Migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

// MigratorFactory opens a Migrator for a database URL.
type MigratorFactory func(databaseURL string) (Migrator, error)

func defaultMigratorFactory(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(defaultMigratorFactory)
}

func newMigrateCmd(factory MigratorFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL schema migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(factory, func(cmd *cobra.Command, m Migrator, _ []string) error {
			if err := m.Up(); err != nil {
				return err //nolint:wrapcheck // Migrator errors carry codes
			}
			cmd.Println("Migrations applied")
			return nil
		}),
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all auth data)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(factory, func(cmd *cobra.Command, m Migrator, _ []string) error {
			yes, err := cmd.Flags().GetBool("yes")
			if err != nil {
				return err //nolint:wrapcheck // flag is always registered
			}
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("refusing to drop the schema without --yes")
			}
			if err := m.Down(); err != nil {
				return err //nolint:wrapcheck // Migrator errors carry codes
			}
			cmd.Println("Migrations rolled back")
			return nil
		}),
	}
	down.Flags().Bool("yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(factory, func(cmd *cobra.Command, m Migrator, _ []string) error {
			st, err := m.Status()
			if err != nil {
				return err //nolint:wrapcheck // Migrator errors carry codes
			}
			printStatus(cmd, st)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long: `Record VERSION as the applied schema version and clear the dirty flag.
Use it after repairing a migration that failed halfway.`,
		Args: cobra.ExactArgs(1),
		RunE: withMigrator(factory, func(cmd *cobra.Command, m Migrator, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return err //nolint:wrapcheck // Migrator errors carry codes
			}
			cmd.Printf("Forced schema version %d\n", v)
			return nil
		}),
	})

	return cmd
}

// withMigrator opens a Migrator from the loaded config around fn.
func withMigrator(factory MigratorFactory, fn func(*cobra.Command, Migrator, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := commandConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").With("key", "database.url").Errorf("database URL is required")
		}
		m, err := factory(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := m.Close(); cerr != nil {
				slog.Warn("closing migrator", "error", cerr)
			}
		}()
		return fn(cmd, m, args)
	}
}

// migrateUp applies pending migrations before serving.
func migrateUp(databaseURL string, logger *slog.Logger) error {
	return migrateUpWith(defaultMigratorFactory, databaseURL, logger)
}

func migrateUpWith(factory MigratorFactory, databaseURL string, logger *slog.Logger) error {
	m, err := factory(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			logger.Warn("closing migrator", "error", cerr)
		}
	}()
	if err := m.Up(); err != nil {
		return err //nolint:wrapcheck // Migrator errors carry codes
	}
	logger.Info("database migrations applied")
	return nil
}

func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative, got %d", v)
	}
	return v, nil
}

func printStatus(cmd *cobra.Command, st *store.Status) {
	state := "clean"
	if st.Dirty {
		state = "dirty"
	}
	cmd.Printf("Schema version: %d (%s)\n", st.Version, state)
	for _, mig := range st.Applied {
		cmd.Println(formatMigration("applied", mig))
	}
	for _, mig := range st.Pending {
		cmd.Println(formatMigration("pending", mig))
	}
}

func formatMigration(state string, mig store.Migration) string {
	return fmt.Sprintf("  [%s] %s", state, mig.Name)
}
