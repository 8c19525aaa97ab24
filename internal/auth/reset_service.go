// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// SessionRevoker revokes all sessions of an account.
type SessionRevoker interface {
	RevokeAccountSessions(ctx context.Context, accountID int64) error
}

// PasswordResetService handles password reset operations.
type PasswordResetService struct {
	accounts AccountRepository
	resets   PasswordResetRepository
	tx       Transactor
	hasher   PasswordHasher
	notifier ResetNotifier
	revoker  SessionRevoker
	ttl      time.Duration
	options
}

// ResetOption configures a PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetTTL overrides ResetTokenExpiry.
func WithResetTTL(ttl time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSessionRevocation revokes every session of the account after a
// successful reset.
func WithSessionRevocation(revoker SessionRevoker) ResetOption {
	return func(s *PasswordResetService) { s.revoker = revoker }
}

// WithResetOptions applies shared service options.
func WithResetOptions(opts ...Option) ResetOption {
	return func(s *PasswordResetService) {
		for _, opt := range opts {
			opt(&s.options)
		}
	}
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(
	accounts AccountRepository,
	resets PasswordResetRepository,
	tx Transactor,
	hasher PasswordHasher,
	notifier ResetNotifier,
	opts ...ResetOption,
) (*PasswordResetService, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("password reset repository is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transactor is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("reset notifier is required")
	}
	s := &PasswordResetService{
		accounts: accounts,
		resets:   resets,
		tx:       tx,
		hasher:   hasher,
		notifier: notifier,
		ttl:      ResetTokenExpiry,
		options:  newOptions(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RequestReset starts a reset for the account with the email. The outcome
// is the same whether or not the account exists; only infrastructure
// failures are returned. The token is handed to the notifier, never returned.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (err error) {
	ctx, done := s.startOp(ctx, "request_reset")
	defer done(&err)

	email = NormalizeEmail(email)
	if !validEmail(email) {
		return NewValidationError(FieldError{Field: "email", Message: "Valid email required"})
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return oops.With("operation", "request reset").Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "GenerateResetToken").Wrap(err)
	}

	expiresAt := s.now().Add(s.ttl)
	reset := &PasswordReset{
		Email:     email,
		TokenHash: hash,
		ExpiresAt: expiresAt,
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return oops.With("operation", "request reset").Wrap(err)
	}

	if err := s.notifier.NotifyPasswordReset(ctx, email, token, expiresAt); err != nil {
		s.logger.ErrorContext(ctx, "password reset notification failed", "reset_id", reset.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password. Unknown,
// expired and used tokens fail identically with ErrInvalidOrExpiredToken.
//
// Marking the token used and updating the hash commit in one transaction,
// claim first, so a changed password never leaves a reusable token.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, done := s.startOp(ctx, "reset_password")
	defer done(&err)

	if token == "" {
		return NewValidationError(FieldError{Field: "token", Message: "Reset token required"})
	}
	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}

	tokenHash := HashResetToken(token)
	reset, err := s.resets.FindValid(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidResetToken()
		}
		return oops.With("operation", "find reset").Wrap(err)
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "Hash").Wrap(err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		claimed, err := s.resets.MarkUsed(ctx, tokenHash)
		if err != nil {
			return err
		}
		if !claimed {
			// Consumed by a concurrent request since FindValid.
			return invalidResetToken()
		}
		if err := s.accounts.UpdatePasswordHash(ctx, reset.Email, newHash); err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidResetToken()
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			return err
		}
		return oops.With("operation", "consume reset").Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset completed", "reset_id", reset.ID)

	if s.revoker != nil {
		s.revokeSessions(ctx, reset.Email)
	}
	return nil
}

// revokeSessions runs after the password has changed, so failures are
// logged rather than returned.
func (s *PasswordResetService) revokeSessions(ctx context.Context, email string) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		s.logger.ErrorContext(ctx, "session revocation after reset failed", "operation", "GetByEmail", "error", err)
		return
	}
	if err := s.revoker.RevokeAccountSessions(ctx, account.ID); err != nil {
		s.logger.ErrorContext(ctx, "session revocation after reset failed",
			"operation", "RevokeAccountSessions", "account_id", account.ID, "error", err)
	}
}

func invalidResetToken() error {
	return oops.Code(CodeInvalidOrExpiredToken).Wrap(ErrInvalidOrExpiredToken)
}
