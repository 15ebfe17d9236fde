package jwtx

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
	"golang.org/x/crypto/pkcs12"
)

// SealedKeyPEMType is the PEM block type written by "authctl seal-key".
const SealedKeyPEMType = "SEALED PRIVATE KEY"

var (
	ErrNoPrivateKey     = errors.New("jwtx: no private key in key store")
	ErrEncryptedPEM     = errors.New("jwtx: legacy encrypted PEM is not supported")
	ErrKeyCertMismatch  = errors.New("jwtx: certificate does not match private key")
	ErrUnsupportedKey   = errors.New("jwtx: unsupported private key type")
	ErrWrongPassphrase  = errors.New("jwtx: wrong key store passphrase")
	errUnknownPEMFormat = errors.New("jwtx: unrecognised key encoding")
)

// ParseKeyStore decodes signing key material. Accepted encodings:
//
//   - PKCS#12 (.p12/.pfx) protected by passphrase
//   - PEM private key in PKCS#8, PKCS#1 or SEC1 form (passphrase ignored)
//   - a sealed PEM key produced by cryptox.Seal under passphrase
//
// A PEM bundle may also carry certificates; they are skipped.
func ParseKeyStore(data []byte, passphrase string) (crypto.Signer, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrNoPrivateKey
	}

	switch {
	case bytes.HasPrefix(trimmed, []byte("-----BEGIN")):
		return parsePEMKeyStore(trimmed, passphrase)
	case cryptox.IsSealed(trimmed):
		return openSealedKey(trimmed, passphrase)
	default:
		return parsePKCS12(data, passphrase)
	}
}

func parsePEMKeyStore(data []byte, passphrase string) (crypto.Signer, error) {
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, ErrNoPrivateKey
		}

		switch block.Type {
		case "CERTIFICATE":
			continue
		case SealedKeyPEMType:
			return openSealedKey(block.Bytes, passphrase)
		case "ENCRYPTED PRIVATE KEY":
			return nil, ErrEncryptedPEM
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			if _, ok := block.Headers["DEK-Info"]; ok {
				return nil, ErrEncryptedPEM
			}
			return parsePrivateKeyDER(block.Bytes)
		default:
			return nil, fmt.Errorf("%w: PEM block %q", errUnknownPEMFormat, block.Type)
		}
	}
}

func openSealedKey(sealed []byte, passphrase string) (crypto.Signer, error) {
	inner, err := cryptox.Open(sealed, passphrase)
	if err != nil {
		if errors.Is(err, cryptox.ErrSealDecrypt) {
			return nil, fmt.Errorf("%w: %w", ErrWrongPassphrase, err)
		}
		return nil, err
	}
	if cryptox.IsSealed(inner) {
		return nil, errors.New("jwtx: nested sealed key")
	}
	return parsePEMKeyStore(bytes.TrimSpace(inner), "")
}

func parsePKCS12(data []byte, passphrase string) (crypto.Signer, error) {
	priv, cert, err := pkcs12.Decode(data, passphrase)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, fmt.Errorf("%w: %w", ErrWrongPassphrase, err)
		}
		// Decode insists on exactly one key and one certificate. Chains
		// go through ToPEM and we take the first key.
		blocks, pemErr := pkcs12.ToPEM(data, passphrase)
		if pemErr != nil {
			return nil, fmt.Errorf("jwtx: decode PKCS#12: %w", err)
		}
		for _, b := range blocks {
			if b.Type == "PRIVATE KEY" {
				return parsePrivateKeyDER(b.Bytes)
			}
		}
		return nil, ErrNoPrivateKey
	}

	key, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, priv)
	}
	if cert != nil {
		pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
		if !ok || !pub.Equal(cert.PublicKey) {
			return nil, ErrKeyCertMismatch
		}
	}
	return key, nil
}

// parsePrivateKeyDER tries PKCS#8 first, then PKCS#1 and SEC1, since the
// PEM block type is not always honest about the encoding.
func parsePrivateKeyDER(der []byte) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
		}
		return signer, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: not PKCS#8, PKCS#1 or SEC1", errUnknownPEMFormat)
}
