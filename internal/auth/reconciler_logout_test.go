// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/auth/mocks"
	"github.com/tollgate/tollgate/internal/cache"
	"github.com/tollgate/tollgate/pkg/errutil"
)

// memSessions is an in-memory SessionRepository. afterList runs once a
// ListActive page has been read, outside the lock.
type memSessions struct {
	mu        sync.Mutex
	clock     *clock
	rows      []auth.ActiveSession
	emails    map[int64]string
	afterList func()
}

func (s *memSessions) Create(_ context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.ID = int64(len(s.rows) + 1)
	session.CreatedAt = s.clock.Now()
	s.rows = append(s.rows, auth.ActiveSession{Session: *session, Email: s.emails[session.AccountID]})
	return nil
}

func (s *memSessions) Revoke(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for i := range s.rows {
		if s.rows[i].TokenID == tokenID && s.rows[i].ExpiresAt.After(now) {
			s.rows[i].ExpiresAt = now
		}
	}
	return nil
}

func (s *memSessions) RevokeAllForAccount(context.Context, int64) ([]string, error) {
	return nil, nil
}

func (s *memSessions) IsActive(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.TokenID == tokenID {
			return row.ExpiresAt.After(s.clock.Now()), nil
		}
	}
	return false, nil
}

func (s *memSessions) ListActive(_ context.Context, now time.Time, afterID int64, limit int) ([]auth.ActiveSession, error) {
	s.mu.Lock()
	var page []auth.ActiveSession
	for _, row := range s.rows {
		if row.ID > afterID && row.ExpiresAt.After(now) && len(page) < limit {
			page = append(page, row)
		}
	}
	hook := s.afterList
	s.afterList = nil
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return page, nil
}

func (s *memSessions) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

var _ auth.SessionRepository = (*memSessions)(nil)

func TestReconciler_LogoutDuringPassStaysRevoked(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	revocations := cache.NewRevocationCache(rdb, "")

	account := testAccount()
	sessions := &memSessions{clock: c, emails: map[int64]string{account.ID: account.Email}}
	accounts := mocks.NewMockAccountRepository(t)
	accounts.On("GetByEmail", mock.Anything, account.Email).Return(account, nil)
	hasher := mocks.NewMockPasswordHasher(t)
	hasher.On("Verify", "hunter22", account.PasswordHash).Return(true, nil)
	hasher.On("NeedsUpgrade", account.PasswordHash).Return(false)

	opts := []auth.Option{auth.WithLogger(logger), auth.WithClock(c.Now)}
	mgr, err := auth.NewSessionManager(accounts, sessions, revocations, newTokenService(t, c), hasher, opts...)
	require.NoError(t, err)
	rec, err := auth.NewReconciler(sessions, nil, revocations,
		auth.WithReconcilerOptions(opts...), auth.WithRetention(0))
	require.NoError(t, err)

	login, err := mgr.Login(ctx, account.Email, "hunter22")
	require.NoError(t, err)
	claims, err := newTokenService(t, c).Parse(login.Token)
	require.NoError(t, err)

	// The entry was lost, so the pass has something to restore; the user
	// logs out after the pass has read the row but before it restores it.
	require.NoError(t, revocations.Delete(ctx, claims.TokenID()))
	sessions.afterList = func() {
		require.NoError(t, mgr.Logout(ctx, login.Token))
	}

	res, err := rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 0, res.Restored)

	_, err = mgr.Verify(ctx, login.Token)
	require.ErrorIs(t, err, auth.ErrTokenRevoked)
	errutil.AssertErrorCode(t, err, auth.CodeTokenRevoked)
	assert.Empty(t, mr.Keys())
}
