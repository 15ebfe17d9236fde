package service

import "errors"

var (
	// ErrUnauthenticated matches every *AuthError via errors.Is.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrTokenExpired means the refresh token timed out unused; the client
	// must log in again.
	ErrTokenExpired = errors.New("refresh_token_expired")

	// ErrTokenReuseDetected means a consumed refresh token was presented
	// again. The user's live tokens are revoked before it is returned.
	ErrTokenReuseDetected = errors.New("refresh_token_reuse_detected")

	ErrRefreshNotFound  = errors.New("refresh_token_not_found")
	ErrRefreshNotActive = errors.New("refresh_token_not_active")
)

// Reasons an AuthError can carry. They reach logs and metrics only.
const (
	ReasonMissingToken             = "missing_token"
	ReasonMalformed                = "malformed"
	ReasonSignatureInvalid         = "signature_invalid"
	ReasonExpired                  = "expired"
	ReasonNotYetValid              = "not_yet_valid"
	ReasonIssuerMismatch           = "issuer_mismatch"
	ReasonAudienceMismatch         = "audience_mismatch"
	ReasonMissingFingerprintSecret = "missing_fingerprint_secret"
	ReasonMissingFingerprintClaim  = "missing_fingerprint_claim"
	ReasonFingerprintMismatch      = "fingerprint_mismatch"
	ReasonSigningKeyUnavailable    = "signing_key_unavailable"
	ReasonUnknownRefreshToken      = "unknown_refresh_token"
)

// AuthError is a per-request authentication failure. Its message never
// changes with the reason so nothing leaks to the caller.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string { return ErrUnauthenticated.Error() }

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthenticated }

func authError(reason string, cause error) *AuthError {
	return &AuthError{Reason: reason, Err: cause}
}

// AuthReason returns the reason of an *AuthError in err's chain, or "".
func AuthReason(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}
