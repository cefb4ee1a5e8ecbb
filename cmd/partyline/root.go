// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package main

import (
	"github.com/spf13/cobra"
)

// configFile is the global --config flag, consumed by every subcommand.
var configFile string

// NewRootCmd creates the root command for the Partyline CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partyline",
		Short: "Partyline - real-time group chat backend",
		Long: `Partyline is the backend core of a real-time group chat service:
parties containing rooms, positioned roles, per-room permission
overwrites, and websocket event fan-out.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(newGatewayCmd())
	cmd.AddCommand(newBackendCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}
