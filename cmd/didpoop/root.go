// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the didpoop CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "didpoop",
		Short: "didpoop - who pooped, and when",
		Long: `didpoop is the API backend for the didpoop creature tracker:
GraphQL over HTTP, cookie sessions, and PostgreSQL persistence.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
