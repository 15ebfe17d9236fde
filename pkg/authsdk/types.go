package authsdk

import "github.com/aussiebroadwan/authsvc/pkg/jwtx"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /v1/auth/refresh and /v1/auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh. The fingerprint secret is
// not part of it; it arrives as the Fgp cookie.
type TokenResponse struct {
	// AccessToken is the fingerprint-bound JWT.
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime of AccessToken in seconds.
	ExpiresIn int64 `json:"expires_in"`

	// RefreshToken is single use. Store the new one after every refresh.
	RefreshToken string `json:"refresh_token"`
}

// UserInfoResponse describes the authenticated user.
type UserInfoResponse struct {
	Subject           string `json:"sub"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// HealthResponse is returned by /livez and /readyz (readyz adds Checks).
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the readiness of each dependency.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`

	// Cache is only reported when a Redis reuse tracker is configured.
	Cache string `json:"cache,omitempty"`
}

// JWKSResponse is the public key set used to verify bearer tokens.
type JWKSResponse jwtx.JWKS
