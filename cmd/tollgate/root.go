// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/internal/logging"
)

const serviceName = "tollgate"

// NewRootCmd creates the root command. Every config key is a persistent
// flag so each subcommand sees the same configuration.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Tollgate - account and session service",
		Long: `Tollgate registers accounts, issues and revokes signed session tokens,
and runs the password reset workflow over PostgreSQL and Redis.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "YAML config file (env: TOLLGATE_CONFIG, default: $XDG_CONFIG_HOME/tollgate/config.yaml)")
	registerConfigFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewReconcileCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// commandConfig loads the configuration visible to cmd.
func commandConfig(cmd *cobra.Command) (*Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err //nolint:wrapcheck // flag is always registered
	}
	path, err = configPath(path)
	if err != nil {
		return nil, err
	}
	return loadConfig(cmd.Flags(), path)
}

// validConfig loads and validates the configuration.
func validConfig(cmd *cobra.Command) (*Config, error) {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// commandLogger builds the logger for cmd and installs it as the default.
func commandLogger(cmd *cobra.Command, cfg *Config) *slog.Logger {
	logger := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return logger
}
