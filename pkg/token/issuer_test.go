package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/provisio/provisio/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestNewIssuer_SecretValidation(t *testing.T) {
	t.Parallel()

	_, err := token.NewIssuer(nil)
	assert.ErrorIs(t, err, token.ErrSecretNotConfigured)

	_, err = token.NewIssuer([]byte("short"))
	assert.ErrorIs(t, err, token.ErrSecretTooShort)

	_, err = token.NewIssuer(testSecret)
	assert.NoError(t, err)
}

func TestIssuer_IssueAndVerify(t *testing.T) {
	t.Parallel()

	issuer, err := token.NewIssuer(testSecret)
	require.NoError(t, err)

	signed, err := issuer.Issue("t1", "owner@example.com", time.Hour)
	require.NoError(t, err)

	// Compact and URL-safe: three dot-separated base64url segments.
	assert.Len(t, strings.Split(signed, "."), 3)
	assert.NotContains(t, signed, "+")
	assert.NotContains(t, signed, "/")

	claims, err := issuer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, "owner@example.com", claims.Subject)
	assert.Equal(t, token.TokenType, claims.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestIssuer_DefaultTTL(t *testing.T) {
	t.Parallel()

	issuer, err := token.NewIssuer(testSecret)
	require.NoError(t, err)

	signed, err := issuer.Issue("t1", "owner@example.com", 0)
	require.NoError(t, err)

	claims, err := issuer.Verify(signed)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(token.DefaultTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestIssuer_RejectsExpired(t *testing.T) {
	t.Parallel()

	issuer, err := token.NewIssuer(testSecret)
	require.NoError(t, err)

	signed, err := issuer.Issue("t1", "owner@example.com", -time.Hour)
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestIssuer_RejectsWrongSecret(t *testing.T) {
	t.Parallel()

	issuer, err := token.NewIssuer(testSecret)
	require.NoError(t, err)

	other, err := token.NewIssuer([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)

	signed, err := issuer.Issue("t1", "owner@example.com", time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(signed)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestIssuer_RejectsForeignTokenKind(t *testing.T) {
	t.Parallel()

	issuer, err := token.NewIssuer(testSecret)
	require.NoError(t, err)

	// A token signed with the same secret but a different type discriminator
	// must not pass as a login token.
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, token.Claims{
		TenantID:  "t1",
		TokenType: "password_reset",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "provisio",
			Audience:  jwt.ClaimStrings{"tenant-login"},
			Subject:   "owner@example.com",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	signed, err := foreign.SignedString(testSecret)
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, token.ErrWrongTokenType)
}
