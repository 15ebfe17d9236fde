package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authsvc/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. Sub-repositories are reached through methods so a
// Tx hands out repos bound to the transaction and nobody nests transactions
// by accident.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. Inside fn only
	// the repos of tx may be used.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// Create inserts a user and returns it with the assigned id.
	// Returns ErrAlreadyExists when the login is taken.
	Create(ctx context.Context, login, passwordHash string) (domain.User, error)

	GetByID(ctx context.Context, id int64) (domain.User, error)

	// GetByLogin is used by the credential check at login.
	GetByLogin(ctx context.Context, login string) (domain.User, error)
}

type RefreshTokens interface {
	// Create stores a new refresh token record.
	Create(ctx context.Context, t domain.RefreshToken) error

	// GetByHash returns the token by the digest of its opaque value.
	GetByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// UpdateIfActive atomically stamps revokedAt and the successor on the
	// token, but only while it is still unrevoked and unexpired at now.
	// Returns false when the token was not active; this is the compare and
	// swap that serialises rotation.
	UpdateIfActive(ctx context.Context, hash string, revokedAt time.Time, successorHash string, now time.Time) (bool, error)

	// RevokeIfActive terminally revokes the token (no successor) while it is
	// still active at now.
	RevokeIfActive(ctx context.Context, hash string, revokedAt time.Time, reason domain.RevocationReason, now time.Time) (bool, error)

	// RevokeAllActiveForUser revokes every token of the user that is active
	// at now and returns how many were revoked.
	RevokeAllActiveForUser(ctx context.Context, userID int64, revokedAt time.Time, reason domain.RevocationReason, now time.Time) (int64, error)

	// ListByUser returns the user's tokens, newest first.
	ListByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error)

	// DeleteExpiredBefore prunes tokens that expired before cutoff. It is
	// retention housekeeping, not part of the token lifecycle.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
