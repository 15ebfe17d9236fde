package jwtx

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")

	// ErrKeyUnavailable wraps any key provider failure hit while verifying.
	ErrKeyUnavailable = errors.New("jwtx: signing key unavailable")
)

// ConfigurationError reports that no signing key material was configured at
// all. It is fatal at startup.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "jwtx: signing key not configured: " + e.Reason
}

// KeyLoadError reports that key material was configured but could not be
// read, decrypted or parsed. The underlying cause is kept for errors.Is/As.
type KeyLoadError struct {
	Source string
	Err    error
}

func (e *KeyLoadError) Error() string {
	return fmt.Sprintf("jwtx: signing key %s is not valid: %v", e.Source, e.Err)
}

func (e *KeyLoadError) Unwrap() error { return e.Err }
