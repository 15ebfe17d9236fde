package jwtx

import (
	"crypto"
	"crypto/ed25519"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// EdDSASigner implements the Signer interface using Ed25519.
type EdDSASigner struct {
	kid string
	key ed25519.PrivateKey
}

func newEdDSASigner(key ed25519.PrivateKey) *EdDSASigner {
	s := &EdDSASigner{key: key}
	if len(key) == ed25519.PrivateKeySize {
		s.kid = thumbprintKID(NewEd25519JWK("", s.Alg(), s.publicKey()))
	}
	return s
}

func (s *EdDSASigner) Alg() string                 { return jwt.SigningMethodEdDSA.Alg() }
func (s *EdDSASigner) KID() string                 { return s.kid }
func (s *EdDSASigner) PublicKey() crypto.PublicKey { return s.publicKey() }

func (s *EdDSASigner) publicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// Sign takes your claims and turns them into a signed JWT string.
func (s *EdDSASigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *EdDSASigner) PublicJWK() JWK {
	return NewEd25519JWK(s.kid, s.Alg(), s.publicKey())
}

func (s *EdDSASigner) Validate() error {
	if len(s.key) != ed25519.PrivateKeySize {
		return fmt.Errorf("jwtx: invalid Ed25519 key size %d", len(s.key))
	}
	return nil
}
