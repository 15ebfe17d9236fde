package jwtx_test

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const fixturePassphrase = "changeit"

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestParseKeyStore_PKCS12(t *testing.T) {
	t.Run("es256", func(t *testing.T) {
		key, err := jwtx.ParseKeyStore(readFixture(t, "signing-es256.p12"), fixturePassphrase)
		require.NoError(t, err)
		_, ok := key.(*ecdsa.PrivateKey)
		require.True(t, ok, "expected ECDSA key, got %T", key)
	})

	t.Run("rs256", func(t *testing.T) {
		key, err := jwtx.ParseKeyStore(readFixture(t, "signing-rs256.p12"), fixturePassphrase)
		require.NoError(t, err)
		_, ok := key.(*rsa.PrivateKey)
		require.True(t, ok, "expected RSA key, got %T", key)
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		_, err := jwtx.ParseKeyStore(readFixture(t, "signing-es256.p12"), "not-it")
		require.ErrorIs(t, err, jwtx.ErrWrongPassphrase)
	})
}

func TestParseKeyStore_PEM(t *testing.T) {
	for _, alg := range []string{"RS256", "ES256", "EdDSA"} {
		t.Run("pkcs8 "+alg, func(t *testing.T) {
			pemKey, err := cryptox.GenerateSigningKey(alg)
			require.NoError(t, err)

			key, err := jwtx.ParseKeyStore(pemKey, "ignored")
			require.NoError(t, err)

			signer, err := jwtx.NewSigner(key)
			require.NoError(t, err)
			require.Equal(t, alg, signer.Alg())
		})
	}

	t.Run("pkcs1 rsa", func(t *testing.T) {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		pemKey := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(priv),
		})

		key, err := jwtx.ParseKeyStore(pemKey, "")
		require.NoError(t, err)
		require.True(t, priv.Equal(key))
	})

	t.Run("certificate only", func(t *testing.T) {
		pemCert := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("not parsed")})
		_, err := jwtx.ParseKeyStore(pemCert, "")
		require.ErrorIs(t, err, jwtx.ErrNoPrivateKey)
	})

	t.Run("legacy encrypted", func(t *testing.T) {
		pemKey := pem.EncodeToMemory(&pem.Block{
			Type:    "RSA PRIVATE KEY",
			Headers: map[string]string{"Proc-Type": "4,ENCRYPTED", "DEK-Info": "AES-256-CBC,00"},
			Bytes:   []byte("x"),
		})
		_, err := jwtx.ParseKeyStore(pemKey, "pw")
		require.ErrorIs(t, err, jwtx.ErrEncryptedPEM)
	})
}

func TestParseKeyStore_Sealed(t *testing.T) {
	pemKey, err := cryptox.GenerateSigningKey("EdDSA")
	require.NoError(t, err)

	sealed, err := cryptox.Seal(pemKey, "s3cret")
	require.NoError(t, err)
	sealedPEM := pem.EncodeToMemory(&pem.Block{Type: jwtx.SealedKeyPEMType, Bytes: sealed})

	t.Run("pem wrapped", func(t *testing.T) {
		key, err := jwtx.ParseKeyStore(sealedPEM, "s3cret")
		require.NoError(t, err)
		_, ok := key.(ed25519.PrivateKey)
		require.True(t, ok)
	})

	t.Run("raw", func(t *testing.T) {
		_, err := jwtx.ParseKeyStore(sealed, "s3cret")
		require.NoError(t, err)
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		_, err := jwtx.ParseKeyStore(sealedPEM, "guess")
		require.ErrorIs(t, err, jwtx.ErrWrongPassphrase)
	})
}

func TestParseKeyStore_Garbage(t *testing.T) {
	_, err := jwtx.ParseKeyStore(nil, "")
	require.ErrorIs(t, err, jwtx.ErrNoPrivateKey)

	_, err = jwtx.ParseKeyStore([]byte("definitely not a key store"), "pw")
	require.Error(t, err)
}
