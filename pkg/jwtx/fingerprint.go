package jwtx

import (
	"crypto/subtle"

	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
)

// NewFingerprintSecret returns a fresh 256-bit client secret. The client keeps
// it out of reach of page scripts and presents it beside the bearer token.
func NewFingerprintSecret() (string, error) {
	return cryptox.GenerateToken(cryptox.TokenSize256)
}

// DeriveFingerprint returns the lowercase hex SHA-256 of the secret. The same
// secret always yields the same digest.
func DeriveFingerprint(secret string) string {
	return cryptox.HexDigest(secret)
}

// BindFingerprint embeds a derived fingerprint into the claims.
func (c *Claims) BindFingerprint(fingerprint string) {
	c.Fingerprint = fingerprint
}

// VerifyFingerprint recomputes the digest of the presented secret and compares
// it to the claimed one in constant time. Empty inputs never match.
func VerifyFingerprint(presentedSecret, claimed string) bool {
	if presentedSecret == "" || claimed == "" {
		return false
	}
	derived := DeriveFingerprint(presentedSecret)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(claimed)) == 1
}
