package domain

import "time"

// Session is what login and refresh hand back to the client: a bearer token,
// the next refresh token and the fingerprint secret the bearer token is bound
// to. The secret travels in a cookie, never in the JSON body.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds until the bearer token expires
	RefreshToken string `json:"refresh_token"`

	UserID            int64     `json:"-"`
	AccessExpiresAt   time.Time `json:"-"`
	RefreshExpiresAt  time.Time `json:"-"`
	FingerprintSecret string    `json:"-"`
}

// RevocationReason records why a refresh token stopped being active.
type RevocationReason string

const (
	RevokedRotated       RevocationReason = "rotated"
	RevokedLogout        RevocationReason = "logout"
	RevokedReuseDetected RevocationReason = "reuse_detected"
	RevokedAdmin         RevocationReason = "admin"
)

// RefreshTokenState is derived from the stored stamps, never stored itself.
type RefreshTokenState string

const (
	StateActive          RefreshTokenState = "active"
	StateExpired         RefreshTokenState = "expired"
	StateRotatedOut      RefreshTokenState = "rotated_out"
	StateRevokedTerminal RefreshTokenState = "revoked"
)

// RefreshToken is one link in a single-use rotation chain. Only the SHA-256
// digest of the opaque value is stored; the successor is referenced by its
// digest too.
type RefreshToken struct {
	ID             string
	UserID         int64
	TokenHash      string // base64url SHA-256 of the opaque value
	CreatedAt      time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	RevokedReason  RevocationReason
	ReplacedByHash string // successor's TokenHash, set only on rotation
}

// IsExpired reports whether now is at or past the expiry.
func (t RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsRevoked reports whether the token carries a revocation stamp.
func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive is true while the token is neither revoked nor expired.
func (t RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

// State derives the lifecycle state. Revocation wins over expiry so a
// consumed token stays recognisable as consumed after it expires.
func (t RefreshToken) State(now time.Time) RefreshTokenState {
	switch {
	case t.IsRevoked() && t.ReplacedByHash != "":
		return StateRotatedOut
	case t.IsRevoked():
		return StateRevokedTerminal
	case t.IsExpired(now):
		return StateExpired
	default:
		return StateActive
	}
}
