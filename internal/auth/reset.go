// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32        // 32 bytes = 64 hex chars
	ResetTokenExpiry = time.Hour // 1 hour expiry
)

// PasswordReset represents a password reset request.
// Only the SHA-256 hash of the token is persisted.
type PasswordReset struct {
	ID        int64
	Email     string
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// IsValidAt reports whether the reset can still be consumed at t.
func (r *PasswordReset) IsValidAt(t time.Time) bool {
	return !r.Used && t.Before(r.ExpiresAt)
}

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token goes to the notifier; the hash is stored.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashResetToken(token), nil
}

// HashResetToken returns the hex SHA-256 of a plaintext reset token.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Create inserts the reset and fills in ID and CreatedAt.
	Create(ctx context.Context, reset *PasswordReset) error

	// FindValid returns the unused, unexpired reset with the token hash,
	// or ErrNotFound.
	FindValid(ctx context.Context, tokenHash string) (*PasswordReset, error)

	// MarkUsed flags the reset as used. It reports whether this call made the
	// transition; marking an already used reset is a no-op.
	MarkUsed(ctx context.Context, tokenHash string) (bool, error)

	// DeleteExpired removes resets that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Transactor runs fn inside a store transaction. Repositories called with
// the ctx passed to fn join the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ResetNotifier delivers a reset token to the account owner.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}
