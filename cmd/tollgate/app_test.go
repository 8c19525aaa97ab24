// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tollgate/tollgate/internal/cache"
	"github.com/tollgate/tollgate/pkg/errutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRevocations(t *testing.T) (*miniredis.Miniredis, *cache.RevocationCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, cache.NewRevocationCache(rdb, "token:")
}

func TestBuildServices_ReconcilePass(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()
	mr, revocations := newRevocations(t)

	cfg := validTestConfig(t)
	cfg.Reconcile.BatchSize = 10

	svc, err := buildServices(cfg, pool, revocations, nil, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, svc.sessions)
	require.NotNil(t, svc.resets)

	now := time.Now()
	pool.ExpectQuery("FROM sessions s").
		WithArgs(pgxmock.AnyArg(), int64(0), 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "token_jti", "expires_at", "created_at", "email"}).
			AddRow(int64(1), int64(7), "jti-1", now.Add(time.Hour), now, "ana@example.com"))
	pool.ExpectQuery("SELECT EXISTS").
		WithArgs("jti-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	pool.ExpectExec("DELETE FROM sessions").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	pool.ExpectExec("DELETE FROM password_resets").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	res, err := svc.reconciler.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.Restored)
	assert.Equal(t, int64(2), res.PurgedSessions)
	assert.Equal(t, int64(1), res.PurgedResets)
	assert.True(t, mr.Exists("token:jti-1"))
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestBuildServices_InvalidSettings(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()
	_, revocations := newRevocations(t)

	cfg := validTestConfig(t)
	cfg.Token.Secret = ""
	_, err = buildServices(cfg, pool, revocations, nil, discardLogger())
	errutil.AssertErrorCode(t, err, "TOKEN_SECRET_REQUIRED")

	cfg = validTestConfig(t)
	cfg.Reset.LinkBaseURL = "/relative"
	_, err = buildServices(cfg, pool, revocations, nil, discardLogger())
	errutil.AssertErrorCode(t, err, "NOTIFIER_INVALID_URL")
}

func TestPoolConfig(t *testing.T) {
	cfg := validTestConfig(t)

	pc := poolConfig(cfg)

	assert.Equal(t, cfg.Database.URL, pc.URL)
	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, 30*time.Second, pc.MaxConnIdleTime)
	assert.Equal(t, 2*time.Second, pc.ConnectTimeout)
}

func TestMonitorServerErrors(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	t.Run("error cancels and is recorded", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		listenErr := errors.New("listener died")
		errCh := make(chan error, 1)
		errCh <- listenErr
		var first firstError

		monitorServerErrors(ctx, cancel, &first, errCh, "api", discardLogger())

		assert.Error(t, ctx.Err())
		require.ErrorIs(t, first.Err(), listenErr)
		errutil.AssertErrorCode(t, first.Err(), "SERVER_FAILED")
		errutil.AssertErrorContext(t, first.Err(), "server", "api")
	})

	t.Run("first failing server wins", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var first firstError
		apiCh := make(chan error, 1)
		apiCh <- errors.New("api listener died")
		obsCh := make(chan error, 1)
		obsCh <- errors.New("metrics listener died")

		monitorServerErrors(ctx, cancel, &first, apiCh, "api", discardLogger())
		// ctx is already cancelled; the select may take either branch.
		monitorServerErrors(ctx, cancel, &first, obsCh, "observability", discardLogger())

		assert.ErrorContains(t, first.Err(), "api listener died")
	})

	t.Run("closed channel leaves context alone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error)
		close(errCh)

		var first firstError
		monitorServerErrors(ctx, cancel, &first, errCh, "api", discardLogger())

		assert.NoError(t, ctx.Err())
		assert.NoError(t, first.Err())
	})

	t.Run("returns on shutdown", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			monitorServerErrors(ctx, cancel, &firstError{}, make(chan error), "api", discardLogger())
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("monitor did not return")
		}
	})
}
