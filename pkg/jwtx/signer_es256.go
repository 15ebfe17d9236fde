package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ES256Signer implements the Signer interface using ECDSA P-256 with SHA-256.
type ES256Signer struct {
	kid string
	key *ecdsa.PrivateKey
}

func newES256Signer(key *ecdsa.PrivateKey) *ES256Signer {
	s := &ES256Signer{key: key}
	if key != nil && key.Curve != nil && key.Curve.Params().Name == "P-256" {
		s.kid = thumbprintKID(NewES256JWK("", s.Alg(), &key.PublicKey))
	}
	return s
}

func (s *ES256Signer) Alg() string                 { return jwt.SigningMethodES256.Alg() }
func (s *ES256Signer) KID() string                 { return s.kid }
func (s *ES256Signer) PublicKey() crypto.PublicKey { return &s.key.PublicKey }

// Sign takes your claims and turns them into a signed JWT string.
func (s *ES256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *ES256Signer) PublicJWK() JWK {
	return NewES256JWK(s.kid, s.Alg(), &s.key.PublicKey)
}

// Validate makes sure we have a key on the P-256 curve; ES256 allows no other.
func (s *ES256Signer) Validate() error {
	if s.key == nil || s.key.Curve == nil {
		return errors.New("jwtx: nil ECDSA key")
	}
	if name := s.key.Curve.Params().Name; name != "P-256" {
		return fmt.Errorf("jwtx: expected P-256 curve, got %s", name)
	}
	return nil
}
