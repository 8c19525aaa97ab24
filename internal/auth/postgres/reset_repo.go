// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
// The token column holds the SHA-256 hash of the reset token.
type PasswordResetRepository struct {
	db DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create stores a new password reset request.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	err := conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO password_resets (email, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, reset.Email, reset.TokenHash, reset.ExpiresAt).
		Scan(&reset.ID, &reset.CreatedAt)
	if err != nil {
		return auth.StoreError("insert password reset", err)
	}
	return nil
}

// FindValid retrieves the unused, unexpired reset with the token hash.
func (r *PasswordResetRepository) FindValid(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, email, token, expires_at, used, created_at
		FROM password_resets
		WHERE token = $1 AND used = FALSE AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`, tokenHash)

	var reset auth.PasswordReset
	err := row.Scan(&reset.ID, &reset.Email, &reset.TokenHash, &reset.ExpiresAt, &reset.Used, &reset.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, auth.StoreError("find valid password reset", err)
	}
	return &reset, nil
}

// MarkUsed flags the reset as used and reports whether this call did so.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, tokenHash string) (bool, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE password_resets SET used = TRUE
		WHERE token = $1 AND used = FALSE
	`, tokenHash)
	if err != nil {
		return false, auth.StoreError("mark password reset used", err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteExpired removes resets that expired before the cutoff.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM password_resets WHERE expires_at < $1`, before)
	if err != nil {
		return 0, auth.StoreError("delete expired password resets", err)
	}
	return result.RowsAffected(), nil
}

var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
