// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
// Revocation moves expires_at to NOW(); rows are removed only by DeleteExpired.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	err := conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO sessions (user_id, token_jti, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, session.AccountID, session.TokenID, session.ExpiresAt).
		Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return auth.StoreError("insert session", err)
	}
	return nil
}

// Revoke expires the session with the token identifier. Already expired or
// missing sessions are left alone.
func (r *SessionRepository) Revoke(ctx context.Context, tokenID string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE sessions SET expires_at = NOW()
		WHERE token_jti = $1 AND expires_at > NOW()
	`, tokenID)
	if err != nil {
		return auth.StoreError("revoke session", err)
	}
	return nil
}

// RevokeAllForAccount expires every live session of the account.
func (r *SessionRepository) RevokeAllForAccount(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		UPDATE sessions SET expires_at = NOW()
		WHERE user_id = $1 AND expires_at > NOW()
		RETURNING token_jti
	`, accountID)
	if err != nil {
		return nil, auth.StoreError("revoke account sessions", err)
	}
	defer rows.Close()

	var tokenIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, auth.StoreError("scan revoked session", err)
		}
		tokenIDs = append(tokenIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, auth.StoreError("iterate revoked sessions", err)
	}
	return tokenIDs, nil
}

// IsActive reports whether the token's session is live at the database's
// current time.
func (r *SessionRepository) IsActive(ctx context.Context, tokenID string) (bool, error) {
	var active bool
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions WHERE token_jti = $1 AND expires_at > NOW()
		)
	`, tokenID).Scan(&active)
	if err != nil {
		return false, auth.StoreError("check session", err)
	}
	return active, nil
}

// ListActive returns a keyset page of sessions live at now, joined with the
// owner's email.
func (r *SessionRepository) ListActive(ctx context.Context, now time.Time, afterID int64, limit int) ([]auth.ActiveSession, error) {
	if limit <= 0 {
		return nil, oops.With("limit", limit).Errorf("limit must be positive")
	}

	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT s.id, s.user_id, s.token_jti, s.expires_at, s.created_at, u.email
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.expires_at > $1 AND s.id > $2
		ORDER BY s.id
		LIMIT $3
	`, now, afterID, limit)
	if err != nil {
		return nil, auth.StoreError("list active sessions", err)
	}
	defer rows.Close()

	sessions := make([]auth.ActiveSession, 0, limit)
	for rows.Next() {
		var s auth.ActiveSession
		if err := rows.Scan(&s.ID, &s.AccountID, &s.TokenID, &s.ExpiresAt, &s.CreatedAt, &s.Email); err != nil {
			return nil, auth.StoreError("scan active session", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, auth.StoreError("iterate active sessions", err)
	}
	return sessions, nil
}

// DeleteExpired removes sessions that expired before the cutoff.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, auth.StoreError("delete expired sessions", err)
	}
	return result.RowsAffected(), nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
