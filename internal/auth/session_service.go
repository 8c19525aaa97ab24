// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// dummyPassword is hashed once per SessionManager so that a login for an
// unknown email performs the same verification work as a wrong password.
const dummyPassword = "tollgate-constant-time-dummy"

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   Profile
}

// SessionManager orchestrates signup, login, verify and logout across the
// credential store and the revocation cache.
type SessionManager struct {
	accounts AccountRepository
	sessions SessionRepository
	cache    RevocationCache
	tokens   *TokenService
	hasher   PasswordHasher
	options

	dummyOnce sync.Once
	dummyHash string
}

// NewSessionManager creates a SessionManager. All dependencies are required.
func NewSessionManager(
	accounts AccountRepository,
	sessions SessionRepository,
	cache RevocationCache,
	tokens *TokenService,
	hasher PasswordHasher,
	opts ...Option,
) (*SessionManager, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if cache == nil {
		return nil, oops.Errorf("revocation cache is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token service is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &SessionManager{
		accounts: accounts,
		sessions: sessions,
		cache:    cache,
		tokens:   tokens,
		hasher:   hasher,
		options:  newOptions(opts),
	}, nil
}

// Signup creates an account and returns its public fields.
func (m *SessionManager) Signup(ctx context.Context, name, email, password string) (_ *Profile, err error) {
	ctx, done := m.startOp(ctx, "signup")
	defer done(&err)

	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if err := ValidateSignup(name, email, password); err != nil {
		return nil, err
	}

	if _, err := m.accounts.GetByEmail(ctx, email); err == nil {
		return nil, accountExists(email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.With("operation", "signup").Wrap(err)
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "Hash").Wrap(err)
	}

	account := &Account{Name: name, Email: email, PasswordHash: hash}
	if err := m.accounts.Create(ctx, account); err != nil {
		// A concurrent signup won the unique constraint.
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, accountExists(email)
		}
		return nil, oops.With("operation", "signup").Wrap(err)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("account.id", account.ID))
	m.logger.InfoContext(ctx, "account created", "account_id", account.ID)

	profile := account.Profile()
	return &profile, nil
}

// Login authenticates by email and password and issues a bearer token.
// Unknown emails and wrong passwords fail identically.
func (m *SessionManager) Login(ctx context.Context, email, password string) (_ *LoginResult, err error) {
	ctx, done := m.startOp(ctx, "login")
	defer done(&err)

	email = NormalizeEmail(email)
	account, err := m.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, oops.With("operation", "login").Wrap(err)
		}
		//nolint:errcheck // result is discarded; the call only equalizes timing
		m.hasher.Verify(password, m.dummy())
		m.logger.InfoContext(ctx, "login failed", "reason", "unknown email")
		return nil, invalidCredentials()
	}

	ok, err := m.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		m.logger.ErrorContext(ctx, "stored password hash is unreadable",
			"account_id", account.ID, "error", err)
		return nil, invalidCredentials()
	}
	if !ok {
		m.logger.InfoContext(ctx, "login failed", "reason", "wrong password", "account_id", account.ID)
		return nil, invalidCredentials()
	}

	m.upgradeHash(ctx, account, password)

	issued, err := m.tokens.Mint(account.ID, account.Email)
	if err != nil {
		return nil, oops.Code("LOGIN_FAILED").With("operation", "Mint").Wrap(err)
	}

	session := &Session{
		AccountID: account.ID,
		TokenID:   issued.TokenID,
		ExpiresAt: issued.ExpiresAt,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, oops.With("operation", "login").Wrap(err)
	}

	// The session row is authoritative. A failed cache write leaves the
	// token unverifiable until reconciliation restores the entry.
	entry := CacheEntry{AccountID: account.ID, Email: account.Email}
	if err := m.cache.Put(ctx, issued.TokenID, entry, issued.ExpiresAt.Sub(m.now())); err != nil {
		m.observer.CacheWriteFailed("login")
		m.logger.WarnContext(ctx, "revocation cache write failed; session pending reconciliation",
			"account_id", account.ID, "error", err)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("account.id", account.ID))

	return &LoginResult{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		Account:   account.Profile(),
	}, nil
}

// Verify checks the token signature and expiry, then its revocation state,
// and returns the current profile of the owning account.
func (m *SessionManager) Verify(ctx context.Context, token string) (_ *Profile, err error) {
	ctx, done := m.startOp(ctx, "verify")
	defer done(&err)

	claims, err := m.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	entry, err := m.cache.Get(ctx, claims.TokenID())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, tokenRevoked(claims)
		}
		return nil, oops.With("operation", "verify").Wrap(err)
	}
	if entry.AccountID != claims.AccountID {
		m.logger.WarnContext(ctx, "cache entry does not match token subject",
			"token_account_id", claims.AccountID, "cache_account_id", entry.AccountID)
		return nil, tokenRevoked(claims)
	}

	account, err := m.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeAccountNotFound).
				With("account_id", claims.AccountID).
				Wrap(ErrAccountNotFound)
		}
		return nil, oops.With("operation", "verify").Wrap(err)
	}

	profile := account.Profile()
	return &profile, nil
}

// Logout revokes the session named by the token. Revoking an already
// revoked session succeeds. A token that fails to parse is rejected with
// the parse error.
func (m *SessionManager) Logout(ctx context.Context, token string) (err error) {
	ctx, done := m.startOp(ctx, "logout")
	defer done(&err)

	claims, err := m.tokens.Parse(token)
	if err != nil {
		return err
	}

	// Store first, then cache. A reconciliation pass that read the row
	// before the revoke may still write the entry back; it rechecks the row
	// after restoring and drops the entry again.
	if err := m.sessions.Revoke(ctx, claims.TokenID()); err != nil {
		return oops.With("operation", "logout").Wrap(err)
	}
	if err := m.cache.Delete(ctx, claims.TokenID()); err != nil {
		return oops.With("operation", "logout").Wrap(err)
	}

	m.logger.InfoContext(ctx, "session revoked", "account_id", claims.AccountID)
	return nil
}

// RevokeAccountSessions revokes every live session of the account and drops
// their cache entries. Cache failures are logged; the rows stay revoked.
func (m *SessionManager) RevokeAccountSessions(ctx context.Context, accountID int64) (err error) {
	ctx, done := m.startOp(ctx, "revoke_all")
	defer done(&err)

	tokenIDs, err := m.sessions.RevokeAllForAccount(ctx, accountID)
	if err != nil {
		return oops.With("operation", "revoke account sessions").With("account_id", accountID).Wrap(err)
	}
	for _, id := range tokenIDs {
		if err := m.cache.Delete(ctx, id); err != nil {
			m.observer.CacheWriteFailed("revoke_all")
			m.logger.WarnContext(ctx, "revocation cache delete failed",
				"account_id", accountID, "error", err)
		}
	}

	m.logger.InfoContext(ctx, "account sessions revoked", "account_id", accountID, "count", len(tokenIDs))
	return nil
}

// upgradeHash re-hashes a legacy or outdated hash after a successful login.
// Failures are logged; login proceeds with the old hash.
func (m *SessionManager) upgradeHash(ctx context.Context, account *Account, password string) {
	if !m.hasher.NeedsUpgrade(account.PasswordHash) {
		return
	}
	newHash, err := m.hasher.Hash(password)
	if err != nil {
		m.logger.WarnContext(ctx, "password hash upgrade failed", "account_id", account.ID, "error", err)
		return
	}
	if err := m.accounts.UpdatePasswordHash(ctx, account.Email, newHash); err != nil {
		m.logger.WarnContext(ctx, "password hash upgrade failed", "account_id", account.ID, "error", err)
		return
	}
	account.PasswordHash = newHash
	m.logger.InfoContext(ctx, "password hash upgraded", "account_id", account.ID)
}

// WarmUp prepares the dummy hash used on the unknown-email path so the first
// such login does not pay for it.
func (m *SessionManager) WarmUp() {
	m.dummy()
}

func (m *SessionManager) dummy() string {
	m.dummyOnce.Do(func() {
		hash, err := m.hasher.Hash(dummyPassword)
		if err != nil {
			m.logger.Error("failed to prepare dummy password hash", "error", err)
			return
		}
		m.dummyHash = hash
	})
	return m.dummyHash
}

func accountExists(email string) error {
	return oops.Code(CodeAccountExists).With("email", email).Wrap(ErrAccountExists)
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}

func tokenRevoked(claims *Claims) error {
	return oops.Code(CodeTokenRevoked).With("account_id", claims.AccountID).Wrap(ErrTokenRevoked)
}
