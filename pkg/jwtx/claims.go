package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token TTLs. Both can be overridden through configuration.
const (
	// DefaultAccessTokenTTL is the default lifetime for bearer tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the bearer token claims issued by the service.
type Claims struct {
	jwt.RegisteredClaims

	// Fingerprint is the hex SHA-256 of the client-held fingerprint secret.
	// A token without it is never accepted.
	Fingerprint string `json:"fgp,omitempty"`

	// PreferredUsername is the login name, informational only.
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// NewAccessClaims builds the registered claims for a bearer token. The
// fingerprint is bound separately with BindFingerprint.
func NewAccessClaims(
	subject, username string,
	issuer string,
	audience []string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		PreferredUsername: username,
	}
}

// NewJTI returns a random UUIDv4 for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}
