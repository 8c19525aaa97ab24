// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Claims is the payload of a bearer token.
type Claims struct {
	AccountID int64  `json:"userId"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// TokenID returns the token identifier (jti).
func (c *Claims) TokenID() string {
	return c.ID
}

// IssuedToken is a freshly minted bearer token.
type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// TokenService mints and parses HS256 bearer tokens. It holds no state
// beyond the signing key.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithIssuer sets the iss claim written and required on parse.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) { s.issuer = issuer }
}

// WithTokenTTL overrides SessionTTL.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) { s.ttl = ttl }
}

// WithTokenClock overrides the time source.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret []byte, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_SECRET_REQUIRED").Errorf("token signing secret is required")
	}
	s := &TokenService{
		secret: secret,
		ttl:    SessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ttl <= 0 {
		return nil, oops.Code("TOKEN_TTL_INVALID").With("ttl", s.ttl).Errorf("token ttl must be positive")
	}
	return s, nil
}

// TTL returns the lifetime of minted tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Mint issues a token for the account with a fresh random identifier.
func (s *TokenService) Mint(accountID int64, email string) (*IssuedToken, error) {
	jti, err := uuid.NewRandom()
	if err != nil {
		return nil, oops.Code("TOKEN_ID_FAILED").Wrap(err)
	}

	// JWT timestamps have second precision; truncate so the session row
	// and the token agree on expiry.
	now := s.now().Truncate(time.Second)
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		AccountID: accountID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}

	return &IssuedToken{
		Token:     signed,
		TokenID:   claims.ID,
		ExpiresAt: expiresAt,
	}, nil
}

// Parse verifies the signature first and expiry second. It returns
// ErrInvalidToken for anything not signed by this service and ErrTokenExpired
// for an authentic token past its expiry.
func (s *TokenService) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, oops.Code(CodeInvalidToken).Wrap(ErrInvalidToken)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := jwt.NewParser(parserOpts...).ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code(CodeTokenExpired).Wrap(ErrTokenExpired)
		}
		return nil, oops.Code(CodeInvalidToken).With("reason", err.Error()).Wrap(ErrInvalidToken)
	}

	if claims.ID == "" || claims.AccountID <= 0 {
		return nil, oops.Code(CodeInvalidToken).With("reason", "missing subject claims").Wrap(ErrInvalidToken)
	}

	return claims, nil
}
