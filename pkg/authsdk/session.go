package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// refreshBuffer renews the bearer token this long before it expires.
const refreshBuffer = 30 * time.Second

// ErrSessionEnded is returned once Logout has been called or the server
// refused to refresh the session.
var ErrSessionEnded = errors.New("authsdk: session ended")

// Session is an authenticated session with automatic bearer refresh. It is
// safe for concurrent use; concurrent callers share a single refresh.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	fingerprint  string
	expiresAt    time.Time
	ended        bool
}

func newSession(client *SDKClient, tokenResp *TokenResponse, fingerprint string) *Session {
	s := &Session{client: client}
	s.apply(tokenResp, fingerprint)
	return s
}

// apply stores a login or refresh result. Callers hold mu for writing or own s.
func (s *Session) apply(tokenResp *TokenResponse, fingerprint string) {
	s.accessToken = tokenResp.AccessToken
	s.refreshToken = tokenResp.RefreshToken
	s.fingerprint = fingerprint
	s.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - refreshBuffer)
}

// Refresh rotates the refresh token and replaces the bearer token now.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.ended || s.refreshToken == "" {
		return ErrSessionEnded
	}

	tokenResp, fingerprint, err := s.client.RefreshGrant(ctx, s.refreshToken, s.fingerprint)
	if err != nil {
		// The server consumed or rejected the token; it cannot be retried.
		if errors.Is(err, ErrUnauthenticated) {
			s.ended = true
		}
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	s.apply(tokenResp, fingerprint)
	return nil
}

// credentials returns a valid bearer token and its fingerprint secret,
// refreshing first when the bearer token is about to expire.
func (s *Session) credentials(ctx context.Context) (string, string, error) {
	s.mu.RLock()
	if !s.ended && time.Now().Before(s.expiresAt) {
		token, fgp := s.accessToken, s.fingerprint
		s.mu.RUnlock()
		return token, fgp, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if !s.ended && time.Now().Before(s.expiresAt) {
		return s.accessToken, s.fingerprint, nil
	}

	if err := s.refreshLocked(ctx); err != nil {
		return "", "", err
	}
	return s.accessToken, s.fingerprint, nil
}

// Logout revokes the refresh token and ends the session.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.refreshToken
	s.ended = true
	s.accessToken, s.refreshToken, s.fingerprint = "", "", ""
	s.mu.Unlock()

	if refreshToken == "" {
		return nil
	}
	return s.client.Logout(ctx, refreshToken)
}

// AccessToken returns the current bearer token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token. Persist it together with
// Fingerprint to resume the session later with ResumeSession.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Fingerprint returns the fingerprint secret the bearer token is bound to.
func (s *Session) Fingerprint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint
}
