package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/HammerMeetNail/socialreact/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			return printVersion(cmd.OutOrStdout(), m)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			return printVersion(cmd.OutOrStdout(), m)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m migrator) error {
			return printVersion(cmd.OutOrStdout(), m)
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}

type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

var openMigrator = func(dsn, dir string) (migrator, error) {
	return database.NewMigrator(dsn, dir)
}

func withMigrator(fn func(m migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	m, err := openMigrator(cfg.Database.DSN(), cfg.Server.MigrationsDir)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer func() { _ = m.Close() }()
	return fn(m)
}

func printVersion(w io.Writer, m migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if output == "json" {
		return writeJSON(w, map[string]interface{}{"version": version, "dirty": dirty})
	}
	if dirty {
		_, err = fmt.Fprintf(w, "schema version %d (dirty)\n", version)
		return err
	}
	_, err = fmt.Fprintf(w, "schema version %d\n", version)
	return err
}
