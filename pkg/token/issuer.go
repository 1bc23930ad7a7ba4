// Package token issues signed, time-boxed, single-purpose login tokens for
// newly provisioned tenant owners.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer   = "provisio"
	audience = "tenant-login"

	// TokenType discriminates login tokens from any other token kind the
	// surrounding system issues.
	TokenType = "tenant_login"

	// DefaultTTL bounds the login link lifetime when the caller passes zero.
	DefaultTTL = 24 * time.Hour

	minSecretLen = 32
)

var (
	// ErrSecretNotConfigured indicates the signing secret is missing. This is
	// a fatal configuration error, never silently defaulted.
	ErrSecretNotConfigured = errors.New("token signing secret not configured")

	// ErrSecretTooShort indicates the signing secret is below 256 bits.
	ErrSecretTooShort = errors.New("token signing secret must be at least 32 bytes")

	// ErrInvalidToken indicates verification failed.
	ErrInvalidToken = errors.New("invalid login token")

	// ErrWrongTokenType indicates a structurally valid token of another kind.
	ErrWrongTokenType = errors.New("token is not a tenant login token")
)

// Claims is the payload of a login token.
type Claims struct {
	TenantID  string `json:"tenant_id"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer signs login tokens with an HMAC-SHA256 secret. It is stateless.
type Issuer struct {
	secret []byte
}

// NewIssuer validates the secret and returns an issuer. The secret is never
// logged.
func NewIssuer(secret []byte) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrSecretNotConfigured
	}

	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}

	return &Issuer{secret: secret}, nil
}

// Issue builds a compact URL-safe token bound to a tenant and owner email.
// A zero ttl means DefaultTTL.
func (i *Issuer) Issue(tenantID, email string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()

	claims := Claims{
		TenantID:  tenantID,
		TokenType: TokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign login token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a login token, including signature, expiry,
// issuer, audience and the type discriminator.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(_ *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != TokenType {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}
