// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/pkg/errutil"
)

var testSecret = []byte("test-signing-secret")

// clock is a settable time source.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func newTokenService(t *testing.T, c *clock, opts ...auth.TokenOption) *auth.TokenService {
	t.Helper()
	opts = append([]auth.TokenOption{auth.WithTokenClock(c.Now), auth.WithIssuer("tollgate")}, opts...)
	svc, err := auth.NewTokenService(testSecret, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewTokenService_Validation(t *testing.T) {
	_, err := auth.NewTokenService(nil)
	errutil.AssertErrorCode(t, err, "TOKEN_SECRET_REQUIRED")

	_, err = auth.NewTokenService(testSecret, auth.WithTokenTTL(-time.Second))
	errutil.AssertErrorCode(t, err, "TOKEN_TTL_INVALID")

	svc, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)
	assert.Equal(t, auth.SessionTTL, svc.TTL())
}

func TestTokenService_MintParse(t *testing.T) {
	c := newClock()
	svc := newTokenService(t, c)

	issued, err := svc.Mint(42, "ana@x.io")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.TokenID)
	assert.Equal(t, c.Now().Add(auth.SessionTTL), issued.ExpiresAt)

	claims, err := svc.Parse(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AccountID)
	assert.Equal(t, "ana@x.io", claims.Email)
	assert.Equal(t, issued.TokenID, claims.TokenID())
	assert.Equal(t, "tollgate", claims.Issuer)
	assert.Equal(t, issued.ExpiresAt, claims.ExpiresAt.Time.UTC())
}

func TestTokenService_PayloadFieldNames(t *testing.T) {
	svc := newTokenService(t, newClock())
	issued, err := svc.Mint(7, "bo@x.io")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(issued.Token, claims)
	require.NoError(t, err)
	for _, key := range []string{"userId", "email", "jti", "iat", "exp", "iss"} {
		assert.Contains(t, claims, key)
	}
	assert.InDelta(t, 7, claims["userId"], 0)
}

func TestTokenService_UniqueTokenIDs(t *testing.T) {
	svc := newTokenService(t, newClock())

	a, err := svc.Mint(1, "a@x.io")
	require.NoError(t, err)
	b, err := svc.Mint(1, "a@x.io")
	require.NoError(t, err)
	assert.NotEqual(t, a.TokenID, b.TokenID)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestTokenService_Expiry(t *testing.T) {
	c := newClock()
	svc := newTokenService(t, c, auth.WithTokenTTL(time.Hour))
	issued, err := svc.Mint(1, "a@x.io")
	require.NoError(t, err)

	c.Advance(59 * time.Minute)
	_, err = svc.Parse(issued.Token)
	require.NoError(t, err)

	c.Advance(2 * time.Minute)
	_, err = svc.Parse(issued.Token)
	require.ErrorIs(t, err, auth.ErrTokenExpired)
	assert.NotErrorIs(t, err, auth.ErrInvalidToken)
	errutil.AssertErrorCode(t, err, auth.CodeTokenExpired)
}

func TestTokenService_Rejects(t *testing.T) {
	c := newClock()
	svc := newTokenService(t, c)
	issued, err := svc.Mint(1, "a@x.io")
	require.NoError(t, err)

	other, err := auth.NewTokenService([]byte("another-secret"), auth.WithTokenClock(c.Now), auth.WithIssuer("tollgate"))
	require.NoError(t, err)
	foreign, err := other.Mint(1, "a@x.io")
	require.NoError(t, err)

	otherIssuer := newTokenService(t, c, auth.WithIssuer("someone-else"))
	misissued, err := otherIssuer.Mint(1, "a@x.io")
	require.NoError(t, err)

	parts := strings.Split(issued.Token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{
		AccountID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			Issuer:    "tollgate",
			ExpiresAt: jwt.NewNumericDate(c.Now().Add(time.Hour)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noJTI := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		AccountID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tollgate",
			ExpiresAt: jwt.NewNumericDate(c.Now().Add(time.Hour)),
		},
	})
	missingJTI, err := noJTI.SignedString(testSecret)
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		AccountID:        1,
		RegisteredClaims: jwt.RegisteredClaims{ID: "jti", Issuer: "tollgate"},
	})
	missingExp, err := noExp.SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"tampered payload", tampered},
		{"foreign secret", foreign.Token},
		{"wrong issuer", misissued.Token},
		{"alg none", unsigned},
		{"missing jti", missingJTI},
		{"missing exp", missingExp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Parse(tt.token)
			require.ErrorIs(t, err, auth.ErrInvalidToken)
			errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
		})
	}
}

func TestTokenService_ExpiredForgeryIsInvalidNotExpired(t *testing.T) {
	c := newClock()
	forger, err := auth.NewTokenService([]byte("attacker"), auth.WithTokenClock(c.Now), auth.WithTokenTTL(time.Minute))
	require.NoError(t, err)
	forged, err := forger.Mint(1, "a@x.io")
	require.NoError(t, err)

	c.Advance(time.Hour)
	svc := newTokenService(t, c)
	_, err = svc.Parse(forged.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	assert.NotErrorIs(t, err, auth.ErrTokenExpired)
}
