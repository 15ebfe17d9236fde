package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aussiebroadwan/authsvc/internal/auth/domain"
	"github.com/aussiebroadwan/authsvc/internal/auth/metrics"
	"github.com/aussiebroadwan/authsvc/internal/auth/store"
	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
	"github.com/aussiebroadwan/authsvc/pkg/slogx"
)

// TokenTypeBearer is the token_type of every issued session.
const TokenTypeBearer = "Bearer"

// SigningKeySource hands out the process signing key; *jwtx.KeyProvider is
// the production implementation.
type SigningKeySource interface {
	SigningKey() (jwtx.Signer, error)
}

// AccessIssuance mints sessions: a fingerprint-bound bearer token plus the
// next refresh token.
type AccessIssuance struct {
	Keys      SigningKeySource
	Ledger    *RefreshLedger
	Store     store.Store
	Hasher    *cryptox.PasswordHasher
	Issuer    string
	Audience  []string
	AccessTTL time.Duration
	Metrics   *metrics.Metrics

	// Now overrides the clock in tests.
	Now func() time.Time

	// dummyHash is verified against when the login is unknown so both
	// failure paths cost one argon2 run.
	dummyOnce sync.Once
	dummyHash string
}

func (s *AccessIssuance) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Login checks the credentials and issues a session. Every failure is
// ErrInvalidCredentials.
func (s *AccessIssuance) Login(ctx context.Context, login, password string) (*domain.Session, error) {
	l := slogx.FromContext(ctx)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.Store.Users().GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.burnVerify(password)
			l.InfoContext(ctx, "login_failed", slog.String("reason", "unknown_login"))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrInvalidHash) {
			l.ErrorContext(ctx, "stored password hash unreadable", slog.Int64("user_id", user.ID), slog.Any("error", err))
		} else {
			l.InfoContext(ctx, "login_failed", slog.String("reason", "password_mismatch"), slog.Int64("user_id", user.ID))
		}
		return nil, ErrInvalidCredentials
	}

	return s.IssueFromCredentials(ctx, user)
}

func (s *AccessIssuance) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.Hash("authsvc-dummy-password")
	})
	_ = s.Hasher.Verify(password, s.dummyHash)
}

// IssueFromCredentials starts a new session for an authenticated user with
// a freshly generated fingerprint secret.
func (s *AccessIssuance) IssueFromCredentials(ctx context.Context, user domain.User) (*domain.Session, error) {
	signer, err := s.signer(ctx)
	if err != nil {
		return nil, err
	}

	secret, err := jwtx.NewFingerprintSecret()
	if err != nil {
		return nil, err
	}

	refresh, rt, err := s.Ledger.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	sess, err := s.session(signer, user, secret, refresh, rt)
	if err != nil {
		return nil, err
	}
	s.Metrics.SessionIssued(metrics.SourceCredentials)
	slogx.FromContext(ctx).InfoContext(ctx, "session_issued",
		slog.String("source", metrics.SourceCredentials),
		slog.Int64("user_id", user.ID),
	)
	return sess, nil
}

// IssueFromRefresh rotates the presented refresh token and mints a bearer
// bound to the presented fingerprint secret. ErrTokenExpired and
// ErrTokenReuseDetected come back from the ledger as they are; every other
// rejection is an *AuthError.
func (s *AccessIssuance) IssueFromRefresh(ctx context.Context, refreshValue, fingerprintSecret string) (*domain.Session, error) {
	if fingerprintSecret == "" {
		s.Metrics.RefreshFailed(ReasonMissingFingerprintSecret)
		return nil, authError(ReasonMissingFingerprintSecret, nil)
	}

	// Resolve the key before consuming the refresh token so a key outage
	// does not burn the client's only refresh token.
	signer, err := s.signer(ctx)
	if err != nil {
		return nil, err
	}

	next, rt, err := s.Ledger.Rotate(ctx, refreshValue)
	if err != nil {
		return nil, s.refreshFailure(ctx, err)
	}

	user, err := s.Store.Users().GetByID(ctx, rt.UserID)
	if err != nil {
		return nil, fmt.Errorf("load refresh token owner: %w", err)
	}

	sess, err := s.session(signer, user, fingerprintSecret, next, rt)
	if err != nil {
		return nil, err
	}
	s.Metrics.SessionIssued(metrics.SourceRefresh)
	slogx.FromContext(ctx).InfoContext(ctx, "session_issued",
		slog.String("source", metrics.SourceRefresh),
		slog.Int64("user_id", user.ID),
	)
	return sess, nil
}

func (s *AccessIssuance) refreshFailure(ctx context.Context, err error) error {
	l := slogx.FromContext(ctx)
	switch {
	case errors.Is(err, ErrTokenExpired):
		s.Metrics.RefreshFailed("refresh_expired")
		l.InfoContext(ctx, "refresh_failed", slog.String("reason", "refresh_expired"))
		return err
	case errors.Is(err, ErrTokenReuseDetected):
		s.Metrics.RefreshFailed("reuse_detected")
		return err
	case errors.Is(err, ErrRefreshNotFound), errors.Is(err, ErrRefreshNotActive):
		s.Metrics.RefreshFailed(ReasonUnknownRefreshToken)
		l.InfoContext(ctx, "refresh_failed", slog.String("reason", ReasonUnknownRefreshToken))
		return authError(ReasonUnknownRefreshToken, err)
	default:
		return err
	}
}

// Revoke ends the session behind a refresh token (logout).
func (s *AccessIssuance) Revoke(ctx context.Context, refreshValue string) error {
	return s.Ledger.Revoke(ctx, refreshValue)
}

func (s *AccessIssuance) signer(ctx context.Context) (jwtx.Signer, error) {
	signer, err := s.Keys.SigningKey()
	if err != nil {
		slogx.FromContext(ctx).ErrorContext(ctx, "signing key unavailable", slog.Any("error", err))
		return nil, authError(ReasonSigningKeyUnavailable, err)
	}
	return signer, nil
}

func (s *AccessIssuance) session(
	signer jwtx.Signer,
	user domain.User,
	fingerprintSecret string,
	refreshValue string,
	rt domain.RefreshToken,
) (*domain.Session, error) {
	now := s.now()
	ttl := s.AccessTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}

	claims := jwtx.NewAccessClaims(
		strconv.FormatInt(user.ID, 10),
		user.Login,
		s.Issuer,
		s.Audience,
		ttl,
		now,
	)
	claims.BindFingerprint(jwtx.DeriveFingerprint(fingerprintSecret))

	access, err := signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &domain.Session{
		AccessToken:       access,
		TokenType:         TokenTypeBearer,
		ExpiresIn:         int64(ttl / time.Second),
		RefreshToken:      refreshValue,
		UserID:            user.ID,
		AccessExpiresAt:   now.Add(ttl),
		RefreshExpiresAt:  rt.ExpiresAt,
		FingerprintSecret: fingerprintSecret,
	}, nil
}
