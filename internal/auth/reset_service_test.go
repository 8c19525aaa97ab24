// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/auth/mocks"
	"github.com/tollgate/tollgate/pkg/errutil"
)

// runInTx makes a mock Transactor call through to fn.
func runInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type resetFixture struct {
	accounts *mocks.MockAccountRepository
	resets   *mocks.MockPasswordResetRepository
	tx       *mocks.MockTransactor
	hasher   *mocks.MockPasswordHasher
	notifier *mocks.MockResetNotifier
	clock    *clock
	logs     *bytes.Buffer
	svc      *auth.PasswordResetService
}

func newResetFixture(t *testing.T, opts ...auth.ResetOption) *resetFixture {
	t.Helper()
	f := &resetFixture{
		accounts: mocks.NewMockAccountRepository(t),
		resets:   mocks.NewMockPasswordResetRepository(t),
		tx:       mocks.NewMockTransactor(t),
		hasher:   mocks.NewMockPasswordHasher(t),
		notifier: mocks.NewMockResetNotifier(t),
		clock:    newClock(),
		logs:     &bytes.Buffer{},
	}
	logger := slog.New(slog.NewJSONHandler(f.logs, nil))
	opts = append([]auth.ResetOption{auth.WithResetOptions(auth.WithLogger(logger), auth.WithClock(f.clock.Now))}, opts...)

	svc, err := auth.NewPasswordResetService(f.accounts, f.resets, f.tx, f.hasher, f.notifier, opts...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewPasswordResetService_NilDependencies(t *testing.T) {
	accounts := mocks.NewMockAccountRepository(t)
	resets := mocks.NewMockPasswordResetRepository(t)
	tx := mocks.NewMockTransactor(t)
	hasher := mocks.NewMockPasswordHasher(t)
	notifier := mocks.NewMockResetNotifier(t)

	_, err := auth.NewPasswordResetService(nil, resets, tx, hasher, notifier)
	assert.ErrorContains(t, err, "accounts repository is required")
	_, err = auth.NewPasswordResetService(accounts, nil, tx, hasher, notifier)
	assert.ErrorContains(t, err, "password reset repository is required")
	_, err = auth.NewPasswordResetService(accounts, resets, nil, hasher, notifier)
	assert.ErrorContains(t, err, "transactor is required")
	_, err = auth.NewPasswordResetService(accounts, resets, tx, nil, notifier)
	assert.ErrorContains(t, err, "password hasher is required")
	_, err = auth.NewPasswordResetService(accounts, resets, tx, hasher, nil)
	assert.ErrorContains(t, err, "reset notifier is required")
}

func TestPasswordResetService_RequestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("stores hash and hands plaintext to notifier", func(t *testing.T) {
		f := newResetFixture(t)
		f.accounts.On("GetByEmail", mock.Anything, "ana@x.io").Return(testAccount(), nil)

		var stored *auth.PasswordReset
		f.resets.On("Create", mock.Anything, mock.AnythingOfType("*auth.PasswordReset")).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*auth.PasswordReset) }).
			Return(nil)

		var sentToken string
		expiry := f.clock.Now().Add(auth.ResetTokenExpiry)
		f.notifier.On("NotifyPasswordReset", mock.Anything, "ana@x.io", mock.AnythingOfType("string"), expiry).
			Run(func(args mock.Arguments) { sentToken = args.String(2) }).
			Return(nil)

		require.NoError(t, f.svc.RequestReset(ctx, " ANA@x.io"))
		require.NotNil(t, stored)
		assert.Equal(t, "ana@x.io", stored.Email)
		assert.Equal(t, expiry, stored.ExpiresAt)
		assert.Equal(t, auth.HashResetToken(sentToken), stored.TokenHash)
		assert.NotEqual(t, sentToken, stored.TokenHash)
	})

	t.Run("unknown email succeeds silently", func(t *testing.T) {
		f := newResetFixture(t)
		f.accounts.On("GetByEmail", mock.Anything, "missing@x.com").Return(nil, auth.ErrNotFound)

		require.NoError(t, f.svc.RequestReset(ctx, "missing@x.com"))
		f.resets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.notifier.AssertNotCalled(t, "NotifyPasswordReset", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid email is a validation error", func(t *testing.T) {
		f := newResetFixture(t)

		err := f.svc.RequestReset(ctx, "not-an-email")
		require.ErrorIs(t, err, auth.ErrValidationFailed)
		assert.Equal(t, "email", auth.FieldErrors(err)[0].Field)
	})

	t.Run("notifier failure is logged not returned", func(t *testing.T) {
		f := newResetFixture(t)
		f.accounts.On("GetByEmail", mock.Anything, "ana@x.io").Return(testAccount(), nil)
		f.resets.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.notifier.On("NotifyPasswordReset", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("smtp down"))

		require.NoError(t, f.svc.RequestReset(ctx, "ana@x.io"))
		assert.Contains(t, f.logs.String(), "password reset notification failed")
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		f := newResetFixture(t)
		f.accounts.On("GetByEmail", mock.Anything, "ana@x.io").Return(testAccount(), nil)
		f.resets.On("Create", mock.Anything, mock.Anything).
			Return(auth.StoreError("create reset", errors.New("timeout")))

		err := f.svc.RequestReset(ctx, "ana@x.io")
		require.ErrorIs(t, err, auth.ErrStoreUnavailable)
	})

	t.Run("custom ttl", func(t *testing.T) {
		f := newResetFixture(t, auth.WithResetTTL(15*time.Minute))
		f.accounts.On("GetByEmail", mock.Anything, "ana@x.io").Return(testAccount(), nil)
		f.resets.On("Create", mock.Anything, mock.MatchedBy(func(r *auth.PasswordReset) bool {
			return r.ExpiresAt.Equal(f.clock.Now().Add(15 * time.Minute))
		})).Return(nil)
		f.notifier.On("NotifyPasswordReset", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, f.svc.RequestReset(ctx, "ana@x.io"))
	})
}

func TestPasswordResetService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	const token = "plaintext-token"
	tokenHash := auth.HashResetToken(token)

	validReset := func(f *resetFixture) *auth.PasswordReset {
		return &auth.PasswordReset{ID: 3, Email: "ana@x.io", TokenHash: tokenHash, ExpiresAt: f.clock.Now().Add(time.Hour)}
	}

	t.Run("claims token then updates password in one transaction", func(t *testing.T) {
		f := newResetFixture(t)
		f.resets.On("FindValid", mock.Anything, tokenHash).Return(validReset(f), nil)
		f.hasher.On("Hash", "newpass1").Return("$argon2id$new", nil)
		f.tx.On("WithinTx", mock.Anything, mock.Anything).Return(runInTx)

		var order []string
		f.resets.On("MarkUsed", mock.Anything, tokenHash).
			Run(func(mock.Arguments) { order = append(order, "mark_used") }).Return(true, nil)
		f.accounts.On("UpdatePasswordHash", mock.Anything, "ana@x.io", "$argon2id$new").
			Run(func(mock.Arguments) { order = append(order, "update_password") }).Return(nil)

		require.NoError(t, f.svc.ResetPassword(ctx, token, "newpass1"))
		assert.Equal(t, []string{"mark_used", "update_password"}, order)
	})

	t.Run("unknown, used and expired tokens fail identically", func(t *testing.T) {
		f := newResetFixture(t)
		f.resets.On("FindValid", mock.Anything, mock.Anything).Return(nil, auth.ErrNotFound)

		err := f.svc.ResetPassword(ctx, "whatever", "newpass1")
		require.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidOrExpiredToken)
		f.hasher.AssertNotCalled(t, "Hash", mock.Anything)
	})

	t.Run("token claimed concurrently", func(t *testing.T) {
		f := newResetFixture(t)
		f.resets.On("FindValid", mock.Anything, tokenHash).Return(validReset(f), nil)
		f.hasher.On("Hash", "newpass1").Return("$argon2id$new", nil)
		f.tx.On("WithinTx", mock.Anything, mock.Anything).Return(runInTx)
		f.resets.On("MarkUsed", mock.Anything, tokenHash).Return(false, nil)

		err := f.svc.ResetPassword(ctx, token, "newpass1")
		require.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
		f.accounts.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("account removed since request", func(t *testing.T) {
		f := newResetFixture(t)
		f.resets.On("FindValid", mock.Anything, tokenHash).Return(validReset(f), nil)
		f.hasher.On("Hash", "newpass1").Return("$argon2id$new", nil)
		f.tx.On("WithinTx", mock.Anything, mock.Anything).Return(runInTx)
		f.resets.On("MarkUsed", mock.Anything, tokenHash).Return(true, nil)
		f.accounts.On("UpdatePasswordHash", mock.Anything, "ana@x.io", "$argon2id$new").Return(auth.ErrNotFound)

		err := f.svc.ResetPassword(ctx, token, "newpass1")
		require.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
	})

	t.Run("store failure inside transaction", func(t *testing.T) {
		f := newResetFixture(t)
		f.resets.On("FindValid", mock.Anything, tokenHash).Return(validReset(f), nil)
		f.hasher.On("Hash", "newpass1").Return("$argon2id$new", nil)
		f.tx.On("WithinTx", mock.Anything, mock.Anything).Return(runInTx)
		f.resets.On("MarkUsed", mock.Anything, tokenHash).Return(true, nil)
		f.accounts.On("UpdatePasswordHash", mock.Anything, "ana@x.io", "$argon2id$new").
			Return(auth.StoreError("update password", errors.New("timeout")))

		err := f.svc.ResetPassword(ctx, token, "newpass1")
		require.ErrorIs(t, err, auth.ErrStoreUnavailable)
	})

	t.Run("validation", func(t *testing.T) {
		f := newResetFixture(t)

		err := f.svc.ResetPassword(ctx, "", "newpass1")
		require.ErrorIs(t, err, auth.ErrValidationFailed)
		assert.Equal(t, "token", auth.FieldErrors(err)[0].Field)

		err = f.svc.ResetPassword(ctx, token, "short")
		require.ErrorIs(t, err, auth.ErrValidationFailed)
		assert.Equal(t, "password", auth.FieldErrors(err)[0].Field)
	})
}

func TestPasswordResetService_SessionRevocation(t *testing.T) {
	ctx := context.Background()
	const token = "plaintext-token"
	tokenHash := auth.HashResetToken(token)

	setup := func(t *testing.T, revoker auth.SessionRevoker) *resetFixture {
		t.Helper()
		var f *resetFixture
		if revoker != nil {
			f = newResetFixture(t, auth.WithSessionRevocation(revoker))
		} else {
			f = newResetFixture(t)
		}
		f.resets.On("FindValid", mock.Anything, tokenHash).
			Return(&auth.PasswordReset{ID: 3, Email: "ana@x.io", TokenHash: tokenHash}, nil)
		f.hasher.On("Hash", "newpass1").Return("$argon2id$new", nil)
		f.tx.On("WithinTx", mock.Anything, mock.Anything).Return(runInTx)
		f.resets.On("MarkUsed", mock.Anything, tokenHash).Return(true, nil)
		f.accounts.On("UpdatePasswordHash", mock.Anything, "ana@x.io", "$argon2id$new").Return(nil)
		return f
	}

	t.Run("enabled revokes every session of the account", func(t *testing.T) {
		revoker := mocks.NewMockSessionRevoker(t)
		f := setup(t, revoker)
		f.accounts.On("GetByEmail", mock.Anything, "ana@x.io").Return(testAccount(), nil)
		revoker.On("RevokeAccountSessions", mock.Anything, int64(1)).Return(nil)

		require.NoError(t, f.svc.ResetPassword(ctx, token, "newpass1"))
	})

	t.Run("revocation failure does not undo the reset", func(t *testing.T) {
		revoker := mocks.NewMockSessionRevoker(t)
		f := setup(t, revoker)
		f.accounts.On("GetByEmail", mock.Anything, "ana@x.io").Return(testAccount(), nil)
		revoker.On("RevokeAccountSessions", mock.Anything, int64(1)).Return(errors.New("timeout"))

		require.NoError(t, f.svc.ResetPassword(ctx, token, "newpass1"))
		assert.Contains(t, f.logs.String(), "session revocation after reset failed")
	})

	t.Run("disabled by default", func(t *testing.T) {
		f := setup(t, nil)

		require.NoError(t, f.svc.ResetPassword(ctx, token, "newpass1"))
		f.accounts.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})
}
