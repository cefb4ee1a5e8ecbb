// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/partyline/partyline/internal/config"
	"github.com/partyline/partyline/internal/store"
)

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending database migrations against the PostgreSQL database.`,
		RunE:  runMigrate,
	}

	cmd.Flags().String("backend.database_url", "", "postgres connection string")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Backend.DatabaseURL == "" {
		return oops.In("migrate").Code("CONFIG_INVALID").Errorf("backend.database_url is required")
	}

	migrator, err := store.NewMigrator(cfg.Backend.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			cmd.PrintErrln("warning: closing migrator:", closeErr)
		}
	}()

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	cmd.Printf("Migrations complete (version %d, dirty=%v)\n", version, dirty)
	return nil
}
