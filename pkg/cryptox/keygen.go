package cryptox

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"
)

// MinRSABits is the smallest RSA modulus accepted for RS256 signing keys.
const MinRSABits = 2048

// GenerateSigningKey creates a fresh private key for the named JWS algorithm
// ("RS256", "ES256" or "EdDSA") and returns it as a PKCS8 PEM block.
func GenerateSigningKey(alg string) ([]byte, error) {
	var (
		key crypto.Signer
		err error
	)

	switch strings.ToUpper(alg) {
	case "RS256":
		key, err = rsa.GenerateKey(rand.Reader, MinRSABits)
	case "ES256":
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "EDDSA", "ED25519":
		_, key, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, fmt.Errorf("cryptox: unsupported signing algorithm %q", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate %s key: %w", alg, err)
	}

	return MarshalPrivateKeyPEM(key)
}

// MarshalPrivateKeyPEM encodes a private key as a PKCS8 "PRIVATE KEY" block.
func MarshalPrivateKeyPEM(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
