package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicKey() crypto.PublicKey
	PublicJWK() JWK
	Validate() error
}

// NewSigner picks the JWS algorithm from the private key type: RSA keys sign
// RS256, P-256 keys sign ES256 and Ed25519 keys sign EdDSA. The kid is the
// JWK thumbprint of the public key.
func NewSigner(key crypto.Signer) (Signer, error) {
	var s Signer

	switch k := key.(type) {
	case *rsa.PrivateKey:
		s = newRS256Signer(k)
	case *ecdsa.PrivateKey:
		s = newES256Signer(k)
	case ed25519.PrivateKey:
		s = newEdDSASigner(k)
	default:
		return nil, fmt.Errorf("jwtx: unsupported private key type %T", key)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// thumbprintKID derives the kid for a JWK built without one.
func thumbprintKID(j JWK) string {
	kid, err := j.Thumbprint()
	if err != nil {
		// Only reachable for key types the signers never build.
		panic(err)
	}
	return kid
}
