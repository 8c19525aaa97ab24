// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/internal/cache"
	"github.com/tollgate/tollgate/internal/store"
)

// NewReconcileCmd creates the reconcile subcommand.
func NewReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one revocation cache reconciliation pass",
		Long: `Restore missing revocation cache entries for live sessions and purge
expired session and reset rows, then exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := validConfig(cmd)
			if err != nil {
				return err
			}
			logger := commandLogger(cmd, cfg)
			ctx := cmd.Context()

			pool, err := store.Connect(ctx, poolConfig(cfg), store.DefaultBackoff(), logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			rdb, err := cache.Connect(ctx, cfg.Redis.URL, store.DefaultBackoff(), logger)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			svc, err := buildServices(cfg, pool, cache.NewRevocationCache(rdb, cfg.Redis.KeyPrefix), nil, logger)
			if err != nil {
				return err
			}
			res, err := svc.reconciler.ReconcileWithRetry(ctx)
			if err != nil {
				return err //nolint:wrapcheck // reconciler errors carry codes
			}
			cmd.Printf("scanned=%d restored=%d purged_sessions=%d purged_resets=%d\n",
				res.Scanned, res.Restored, res.PurgedSessions, res.PurgedResets)
			return nil
		},
	}
}
