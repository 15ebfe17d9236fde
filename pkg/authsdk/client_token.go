package authsdk

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// ErrNoFingerprint is returned when a login or refresh response carries no
// Fgp cookie; the bearer token in it would be unusable.
var ErrNoFingerprint = errors.New("authsdk: response has no fingerprint cookie")

// LoginGrant calls POST /v1/auth/login and returns the tokens together with
// the fingerprint secret from the Fgp cookie.
func (c *SDKClient) LoginGrant(ctx context.Context, login, password string) (*TokenResponse, string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/login",
		LoginRequest{Login: login, Password: password}, "", "")
	if err != nil {
		return nil, "", err
	}
	return decodeTokenResponse(resp)
}

// RefreshGrant calls POST /v1/auth/refresh, presenting the fingerprint
// secret. A 401 means the refresh token can no longer be used.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken, fingerprint string) (*TokenResponse, string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/refresh",
		RefreshRequest{RefreshToken: refreshToken}, "", fingerprint)
	if err != nil {
		return nil, "", err
	}
	return decodeTokenResponse(resp)
}

// Logout calls POST /v1/auth/logout. The server answers 200 even for unknown
// tokens, so only transport failures are reported.
func (c *SDKClient) Logout(ctx context.Context, refreshToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/logout",
		RefreshRequest{RefreshToken: refreshToken}, "", "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return parseErrorResponse(resp, body)
}

func decodeTokenResponse(resp *http.Response) (*TokenResponse, string, error) {
	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, "", err
	}

	fingerprint := fingerprintCookie(resp)
	if fingerprint == "" {
		return nil, "", ErrNoFingerprint
	}
	return &tokenResp, fingerprint, nil
}
