package jwtx

import (
	"crypto"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinRSAKeyBits rejects RSA keys too short for RS256.
const MinRSAKeyBits = 2048

// RS256Signer implements the Signer interface using RSA SHA-256.
type RS256Signer struct {
	kid string
	key *rsa.PrivateKey
}

func newRS256Signer(key *rsa.PrivateKey) *RS256Signer {
	s := &RS256Signer{key: key}
	if key != nil {
		s.kid = thumbprintKID(NewRSAJWK("", s.Alg(), &key.PublicKey))
	}
	return s
}

func (s *RS256Signer) Alg() string                 { return jwt.SigningMethodRS256.Alg() }
func (s *RS256Signer) KID() string                 { return s.kid }
func (s *RS256Signer) PublicKey() crypto.PublicKey { return &s.key.PublicKey }

// Sign takes your claims and turns them into a signed JWT string.
func (s *RS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *RS256Signer) PublicJWK() JWK {
	return NewRSAJWK(s.kid, s.Alg(), &s.key.PublicKey)
}

// Validate checks the key is present, sane and long enough.
func (s *RS256Signer) Validate() error {
	if s.key == nil {
		return errors.New("jwtx: nil RSA key")
	}
	if bits := s.key.N.BitLen(); bits < MinRSAKeyBits {
		return fmt.Errorf("jwtx: RSA key too short: %d bits", bits)
	}
	return s.key.Validate()
}
