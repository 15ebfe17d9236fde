package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/authsvc/internal/auth/metrics"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
	"github.com/aussiebroadwan/authsvc/pkg/slogx"
)

// BearerValidator accepts a bearer token only when its signature, issuer,
// audience, expiry and fingerprint binding all check out. Any failure is an
// *AuthError.
type BearerValidator struct {
	verifier *jwtx.Verifier
	metrics  *metrics.Metrics
}

func NewBearerValidator(keys jwtx.KeySource, opts jwtx.VerifyOptions, m *metrics.Metrics) *BearerValidator {
	return &BearerValidator{
		verifier: jwtx.NewVerifier(keys, opts),
		metrics:  m,
	}
}

// Validate checks token and the fingerprint secret presented beside it.
func (v *BearerValidator) Validate(ctx context.Context, token, fingerprintSecret string) (*jwtx.Claims, error) {
	claims, err := v.validate(token, fingerprintSecret)
	if err != nil {
		reason := AuthReason(err)
		v.metrics.BearerRejected(reason)
		slogx.FromContext(ctx).DebugContext(ctx, "bearer_rejected",
			slog.String("reason", reason),
			slog.Any("error", errors.Unwrap(err)),
		)
		return nil, err
	}
	return claims, nil
}

func (v *BearerValidator) validate(token, fingerprintSecret string) (*jwtx.Claims, error) {
	if token == "" {
		return nil, authError(ReasonMissingToken, nil)
	}

	claims, err := v.verifier.Verify(token)
	if err != nil {
		return nil, authError(verifyReason(err), err)
	}

	if claims.Fingerprint == "" {
		return nil, authError(ReasonMissingFingerprintClaim, nil)
	}
	if fingerprintSecret == "" {
		return nil, authError(ReasonMissingFingerprintSecret, nil)
	}
	if !jwtx.VerifyFingerprint(fingerprintSecret, claims.Fingerprint) {
		return nil, authError(ReasonFingerprintMismatch, nil)
	}

	return claims, nil
}

func verifyReason(err error) string {
	switch {
	case errors.Is(err, jwtx.ErrKeyUnavailable):
		return ReasonSigningKeyUnavailable
	case errors.Is(err, jwtx.ErrInvalidSig),
		errors.Is(err, jwtx.ErrUnknownKID),
		errors.Is(err, jwtx.ErrAlgMismatch):
		return ReasonSignatureInvalid
	case errors.Is(err, jwtx.ErrExpired):
		return ReasonExpired
	case errors.Is(err, jwtx.ErrNotYetValid):
		return ReasonNotYetValid
	case errors.Is(err, jwtx.ErrIssuer):
		return ReasonIssuerMismatch
	case errors.Is(err, jwtx.ErrAudience):
		return ReasonAudienceMismatch
	default:
		return ReasonMalformed
	}
}
