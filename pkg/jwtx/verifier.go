package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyOptions captures the expectations every token must meet.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Audience values the token must contain (claims.aud). Empty means "don't care".
	Audience []string

	// Leeway allows clock skew when validating exp/nbf. Zero by default.
	Leeway time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// KeySource supplies verification keys; *KeyProvider is the production one.
type KeySource interface {
	KeySet() (*KeySet, error)
}

// Verifier checks signature, algorithm, expiry, issuer and audience of a JWT
// and gives you back the claims if it's legit. It does not look at the
// fingerprint claim.
type Verifier struct {
	keys KeySource
	opts VerifyOptions
}

// NewVerifier builds a Verifier over the given key source.
func NewVerifier(keys KeySource, opts VerifyOptions) *Verifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Verifier{keys: keys, opts: opts}
}

// Verify validates the JWT string and returns its parsed Claims. Errors wrap
// exactly one of the package sentinels so callers can classify them.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	keys, err := v.keys.KeySet()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(keys.Algs()),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.opts.Leeway),
		jwt.WithTimeFunc(v.opts.Now),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		// Need the kid to know which key to use
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrUnknownKID
		}

		pub, alg, err := keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
		}

		// The key decides the algorithm, never the header alone.
		if t.Method.Alg() != alg {
			return nil, ErrAlgMismatch
		}
		return pub, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaim
	}

	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return nil, err
	}

	return claims, nil
}

// classifyParseError maps golang-jwt errors onto our sentinels.
func classifyParseError(err error) error {
	var sentinel error
	switch {
	case errors.Is(err, ErrUnknownKID):
		sentinel = ErrUnknownKID
	case errors.Is(err, ErrAlgMismatch):
		sentinel = ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenMalformed):
		sentinel = ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		sentinel = ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		sentinel = ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		sentinel = ErrNotYetValid
	default:
		sentinel = ErrInvalidClaim
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
