// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"log/slog"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/auth/postgres"
	"github.com/tollgate/tollgate/internal/cache"
	"github.com/tollgate/tollgate/internal/store"
)

// services bundles the wired domain components.
type services struct {
	sessions   *auth.SessionManager
	resets     *auth.PasswordResetService
	reconciler *auth.Reconciler
}

// buildServices wires the domain services over an open pool and the
// revocation cache. observer may be nil when metrics are disabled.
func buildServices(cfg *Config, db postgres.DB, revocations *cache.RevocationCache, observer auth.Observer, logger *slog.Logger) (*services, error) {
	shared := []auth.Option{auth.WithLogger(logger)}
	if observer != nil {
		shared = append(shared, auth.WithObserver(observer))
	}

	accounts := postgres.NewAccountRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	resetRepo := postgres.NewPasswordResetRepository(db)
	hasher := auth.NewArgon2idHasher()

	tokens, err := auth.NewTokenService([]byte(cfg.Token.Secret),
		auth.WithIssuer(cfg.Token.Issuer),
		auth.WithTokenTTL(cfg.Token.TTL),
	)
	if err != nil {
		return nil, err
	}

	sessions, err := auth.NewSessionManager(accounts, sessionRepo, revocations, tokens, hasher, shared...)
	if err != nil {
		return nil, err
	}

	notifier, err := auth.NewLogNotifier(logger, cfg.Reset.LinkBaseURL)
	if err != nil {
		return nil, err
	}
	resetOpts := []auth.ResetOption{
		auth.WithResetTTL(cfg.Reset.TTL),
		auth.WithResetOptions(shared...),
	}
	if cfg.Reset.RevokeSessions {
		resetOpts = append(resetOpts, auth.WithSessionRevocation(sessions))
	}
	resets, err := auth.NewPasswordResetService(accounts, resetRepo, postgres.NewTransactor(db), hasher, notifier, resetOpts...)
	if err != nil {
		return nil, err
	}

	reconciler, err := auth.NewReconciler(sessionRepo, resetRepo, revocations,
		auth.WithBatchSize(cfg.Reconcile.BatchSize),
		auth.WithRetention(cfg.Reconcile.Retention),
		auth.WithReconcilerOptions(shared...),
	)
	if err != nil {
		return nil, err
	}

	return &services{
		sessions:   sessions,
		resets:     resets,
		reconciler: reconciler,
	}, nil
}

func poolConfig(cfg *Config) store.PoolConfig {
	return store.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	}
}
