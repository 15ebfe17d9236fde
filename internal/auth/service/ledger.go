package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authsvc/internal/auth/domain"
	"github.com/aussiebroadwan/authsvc/internal/auth/metrics"
	"github.com/aussiebroadwan/authsvc/internal/auth/security"
	"github.com/aussiebroadwan/authsvc/internal/auth/store"
	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
	"github.com/aussiebroadwan/authsvc/pkg/idx"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
	"github.com/aussiebroadwan/authsvc/pkg/slogx"
)

// EventRefreshTokenReuse is the security event logged on reuse detection.
const EventRefreshTokenReuse = "refresh_token_reuse"

// errCASLost marks a rotation whose compare-and-swap matched no row.
var errCASLost = errors.New("refresh token no longer active")

// RefreshLedger owns the refresh token state machine: issue, single-use
// rotation, logout and reuse containment. Rows are never deleted here.
type RefreshLedger struct {
	Store   store.Store
	TTL     time.Duration
	Reuse   security.ReuseTracker
	Metrics *metrics.Metrics

	// Now overrides the clock in tests.
	Now func() time.Time
}

func NewRefreshLedger(st store.Store, ttl time.Duration) *RefreshLedger {
	if ttl <= 0 {
		ttl = jwtx.DefaultRefreshTokenTTL
	}
	return &RefreshLedger{
		Store: st,
		TTL:   ttl,
		Reuse: security.Noop{},
		Now:   time.Now,
	}
}

func (l *RefreshLedger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}

// mint builds a new Active token for userID without persisting it. The raw
// value is returned once and only its digest is kept.
func (l *RefreshLedger) mint(userID int64, now time.Time) (string, domain.RefreshToken, error) {
	value, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.RefreshToken{}, err
	}
	return value, domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(value),
		CreatedAt: now,
		ExpiresAt: now.Add(l.TTL),
	}, nil
}

// Issue creates a fresh Active token for the user.
func (l *RefreshLedger) Issue(ctx context.Context, userID int64) (string, domain.RefreshToken, error) {
	value, rt, err := l.mint(userID, l.now())
	if err != nil {
		return "", domain.RefreshToken{}, err
	}
	if err := l.Store.RefreshTokens().Create(ctx, rt); err != nil {
		return "", domain.RefreshToken{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return value, rt, nil
}

// Rotate exchanges an Active token for its successor. The old row is
// stamped revoked with the successor's digest in the same transaction that
// creates the successor; the conditional update is what makes concurrent
// rotations of one value produce a single winner.
//
// Failures:
//   - ErrRefreshNotFound when the value is unknown
//   - ErrTokenExpired when it timed out without being used
//   - ErrTokenReuseDetected when it was already revoked; every Active token
//     of the user is revoked before returning
func (l *RefreshLedger) Rotate(ctx context.Context, value string) (string, domain.RefreshToken, error) {
	if value == "" {
		return "", domain.RefreshToken{}, ErrRefreshNotFound
	}
	hash := cryptox.FingerprintToken(value)
	now := l.now()

	var (
		nextValue string
		next      domain.RefreshToken
	)
	err := l.Store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.RefreshTokens().GetByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRefreshNotFound
			}
			return err
		}

		nextValue, next, err = l.mint(cur.UserID, now)
		if err != nil {
			return err
		}
		if err := tx.RefreshTokens().Create(ctx, next); err != nil {
			return err
		}

		ok, err := tx.RefreshTokens().UpdateIfActive(ctx, hash, now, next.TokenHash, now)
		if err != nil {
			return err
		}
		if !ok {
			return errCASLost
		}
		return nil
	})
	switch {
	case err == nil:
		return nextValue, next, nil
	case errors.Is(err, errCASLost):
		return "", domain.RefreshToken{}, l.classifyInactive(ctx, hash, now)
	default:
		return "", domain.RefreshToken{}, err
	}
}

// classifyInactive runs after the failed rotation rolled back and works out
// why the token was not Active. Revocation is checked first, so a consumed
// token that has since expired still counts as reuse.
func (l *RefreshLedger) classifyInactive(ctx context.Context, hash string, now time.Time) error {
	cur, err := l.Store.RefreshTokens().GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRefreshNotFound
		}
		return err
	}

	switch {
	case cur.IsRevoked():
		if err := l.containReuse(ctx, cur, now); err != nil {
			return err
		}
		return ErrTokenReuseDetected
	case cur.IsExpired(now):
		return ErrTokenExpired
	default:
		// Still active after a failed swap: the clock moved between the
		// two reads. Nothing was consumed, so the caller may retry.
		return ErrRefreshNotActive
	}
}

// containReuse revokes every Active token of the owner and raises the
// security signal.
func (l *RefreshLedger) containReuse(ctx context.Context, presented domain.RefreshToken, now time.Time) error {
	n, err := l.Store.RefreshTokens().RevokeAllActiveForUser(ctx, presented.UserID, now, domain.RevokedReuseDetected, now)
	if err != nil {
		return fmt.Errorf("contain refresh token reuse: %w", err)
	}

	slogx.Security(ctx, EventRefreshTokenReuse,
		slog.Int64("user_id", presented.UserID),
		slog.String("token_id", presented.ID),
		slog.String("state", string(presented.State(now))),
		slog.Int64("revoked", n),
	)
	l.Metrics.ReuseDetected()

	if l.Reuse != nil {
		if _, err := l.Reuse.Record(ctx, presented.UserID); err != nil {
			slogx.FromContext(ctx).WarnContext(ctx, "reuse_tracker_unavailable", slog.Any("error", err))
		}
	}
	return nil
}

// Revoke terminally revokes an Active token (logout). Anything else is
// ErrRefreshNotActive and changes nothing.
func (l *RefreshLedger) Revoke(ctx context.Context, value string) error {
	if value == "" {
		return ErrRefreshNotActive
	}
	now := l.now()
	ok, err := l.Store.RefreshTokens().RevokeIfActive(ctx, cryptox.FingerprintToken(value), now, domain.RevokedLogout, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRefreshNotActive
	}
	return nil
}

// RevokeAllForUser revokes every Active token of the user and reports how
// many were revoked.
func (l *RefreshLedger) RevokeAllForUser(ctx context.Context, userID int64, reason domain.RevocationReason) (int64, error) {
	now := l.now()
	return l.Store.RefreshTokens().RevokeAllActiveForUser(ctx, userID, now, reason, now)
}
