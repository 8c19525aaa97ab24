// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/cache"
	"github.com/tollgate/tollgate/internal/observability"
	"github.com/tollgate/tollgate/internal/store"
	"github.com/tollgate/tollgate/internal/web"
	"github.com/tollgate/tollgate/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Connect to PostgreSQL and Redis, rebuild missing revocation cache
entries, then serve the auth API until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := validConfig(cmd)
			if err != nil {
				return err
			}
			logger := commandLogger(cmd, cfg)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := runServe(ctx, cfg, logger); err != nil {
				errutil.LogError(logger, "serve failed", err)
				return err
			}
			return nil
		},
	}
}

func runServe(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	pool, err := store.Connect(ctx, poolConfig(cfg), store.DefaultBackoff(), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := cache.Connect(ctx, cfg.Redis.URL, store.DefaultBackoff(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("closing redis client", "error", err)
		}
	}()
	revocations := cache.NewRevocationCache(rdb, cfg.Redis.KeyPrefix)

	var (
		obs       *observability.Server
		observer  auth.Observer
		recorder  web.RequestRecorder
		readiness *observability.Readiness
	)
	if cfg.Metrics.Addr != "" {
		readiness = observability.NewReadiness(cfg.Database.ConnectTimeout, logger, map[string]observability.PingFunc{
			"database": pool.Ping,
			"cache":    revocations.Ping,
		})
		obs = observability.NewServer(cfg.Metrics.Addr, readiness.Check, logger)
		observer = obs.Metrics()
		recorder = obs.Metrics()
	}

	svc, err := buildServices(cfg, pool, revocations, observer, logger)
	if err != nil {
		return err
	}
	svc.sessions.WarmUp()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var serveErr firstError

	if obs != nil {
		obsErrCh, err := obs.Start()
		if err != nil {
			return oops.Code("METRICS_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, &serveErr, obsErrCh, "observability", logger)
	}

	// Rebuild cache entries lost while the service was down before taking
	// traffic, so live sessions do not read as revoked.
	res, err := svc.reconciler.ReconcileWithRetry(ctx)
	if err != nil {
		stopServer(obs, cfg, logger)
		return oops.Code("STARTUP_RECONCILE_FAILED").Wrap(err)
	}
	logger.Info("startup reconciliation finished", "scanned", res.Scanned, "restored", res.Restored)

	webOpts := []web.Option{web.WithLogger(logger)}
	if recorder != nil {
		webOpts = append(webOpts, web.WithRecorder(recorder))
	}
	api, err := web.NewServer(web.Config{
		Addr:           cfg.HTTP.Addr,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, svc.sessions, svc.resets, webOpts...)
	if err != nil {
		stopServer(obs, cfg, logger)
		return err
	}
	apiErrCh, err := api.Start()
	if err != nil {
		stopServer(obs, cfg, logger)
		return err
	}
	go monitorServerErrors(ctx, cancel, &serveErr, apiErrCh, "api", logger)

	if readiness != nil {
		readiness.MarkReady()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.reconciler.Run(ctx, cfg.Reconcile.Interval)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := api.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "stopping api server", err)
	}
	stopServer(obs, cfg, logger)
	wg.Wait()
	return serveErr.Err()
}

// stopServer stops the observability server if one is running.
func stopServer(obs *observability.Server, cfg *Config, logger *slog.Logger) {
	if obs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := obs.Stop(ctx); err != nil {
		errutil.LogError(logger, "stopping observability server", err)
	}
}

// firstError keeps the first serve error reported by any server.
type firstError struct {
	mu  sync.Mutex
	err error
}

func (f *firstError) Set(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

func (f *firstError) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// monitorServerErrors records a serve error and cancels ctx so runServe
// shuts down and returns it. It returns when the channel closes or ctx is
// done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, first *firstError, errCh <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		logger.Error("server error, triggering shutdown", "server", name, "error", err)
		first.Set(oops.Code("SERVER_FAILED").With("server", name).Wrap(err))
		cancel()
	case <-ctx.Done():
	}
}
