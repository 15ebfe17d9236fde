package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the authsvc API. It performs unauthenticated
// calls and creates authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login authenticates with a login and password and starts a Session.
func (c *SDKClient) Login(ctx context.Context, login, password string) (*Session, error) {
	tokenResp, fingerprint, err := c.LoginGrant(ctx, login, password)
	if err != nil {
		return nil, err
	}

	return newSession(c, tokenResp, fingerprint), nil
}

// ResumeSession rebuilds a Session from stored values. The bearer token is
// treated as expired so the first call refreshes it.
func (c *SDKClient) ResumeSession(refreshToken, fingerprint string) *Session {
	return &Session{
		client:       c,
		refreshToken: refreshToken,
		fingerprint:  fingerprint,
	}
}
