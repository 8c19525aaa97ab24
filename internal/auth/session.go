// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"time"
)

// SessionTTL is the lifetime of a bearer token and its session row.
const SessionTTL = 7 * 24 * time.Hour

// Session is the durable record of one issued bearer token.
type Session struct {
	ID        int64
	AccountID int64
	TokenID   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpiredAt reports whether the session is expired or revoked at t.
// Revocation sets ExpiresAt to the revocation instant.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// ActiveSession is a live session joined with its owner's email.
type ActiveSession struct {
	Session
	Email string
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create inserts the session and fills in ID and CreatedAt.
	Create(ctx context.Context, session *Session) error

	// Revoke expires the session with the token identifier. No-op if absent.
	Revoke(ctx context.Context, tokenID string) error

	// RevokeAllForAccount expires every live session of the account and
	// returns their token identifiers.
	RevokeAllForAccount(ctx context.Context, accountID int64) ([]string, error)

	// IsActive reports whether the session with the token identifier is
	// unrevoked and unexpired at the store's current time.
	IsActive(ctx context.Context, tokenID string) (bool, error)

	// ListActive returns up to limit sessions live at now with ID > afterID,
	// ordered by ID.
	ListActive(ctx context.Context, now time.Time, afterID int64, limit int) ([]ActiveSession, error)

	// DeleteExpired removes sessions that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CacheEntry is the value mirrored into the revocation cache.
type CacheEntry struct {
	AccountID int64  `json:"userId"`
	Email     string `json:"email"`
}

// RevocationCache answers "is this token identifier still valid" without
// touching the credential store. A missing entry means revoked.
type RevocationCache interface {
	// Put stores the entry for ttl, replacing any existing one.
	Put(ctx context.Context, tokenID string, entry CacheEntry, ttl time.Duration) error

	// Get returns ErrNotFound on a miss.
	Get(ctx context.Context, tokenID string) (*CacheEntry, error)

	// Delete removes the entry. No-op if absent.
	Delete(ctx context.Context, tokenID string) error

	// Restore stores the entry only if none exists and reports whether it did.
	Restore(ctx context.Context, tokenID string, entry CacheEntry, ttl time.Duration) (bool, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}
