package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// sealMagic prefixes every sealed blob so a wrong file fails fast instead of
// surfacing as an authentication error.
var sealMagic = []byte("ASK1")

const sealSaltLength = 16

var (
	ErrNotSealed     = errors.New("cryptox: data is not sealed")
	ErrSealDecrypt   = errors.New("cryptox: unable to open sealed data")
	ErrEmptyPassword = errors.New("cryptox: empty passphrase")
)

// Seal encrypts plaintext with AES-256-GCM under a key derived from the
// passphrase with Argon2id.
//
// Output format: [magic 4][salt 16][nonce 12][ciphertext + tag]
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassword
	}

	salt := make([]byte, sealSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := sealCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealMagic)+len(salt)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, sealMagic), nil
}

// Open reverses Seal. A wrong passphrase and tampered data both report
// ErrSealDecrypt.
func Open(sealed []byte, passphrase string) ([]byte, error) {
	if !IsSealed(sealed) {
		return nil, ErrNotSealed
	}
	rest := sealed[len(sealMagic):]
	if len(rest) < sealSaltLength {
		return nil, fmt.Errorf("%w: truncated", ErrSealDecrypt)
	}
	salt, rest := rest[:sealSaltLength], rest[sealSaltLength:]

	gcm, err := sealCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}

	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: truncated", ErrSealDecrypt)
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, sealMagic)
	if err != nil {
		return nil, ErrSealDecrypt
	}
	return plaintext, nil
}

// IsSealed reports whether data carries the Seal header.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealMagic)
}

func sealCipher(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), salt, iterations, memory, parallelism, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
