package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/authsvc/internal/auth/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

const refreshTokenColumns = `id, user_id, token_hash, created_at, expires_at, revoked_at, revoked_reason, replaced_by_hash`

func scanRefreshToken(row interface{ Scan(...any) error }) (domain.RefreshToken, error) {
	var (
		t                  domain.RefreshToken
		revokedAt          sql.NullTime
		reason, replacedBy sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &revokedAt, &reason, &replacedBy); err != nil {
		return domain.RefreshToken{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.RevokedAt = mapNullTimePtr(revokedAt)
	t.RevokedReason = domain.RevocationReason(mapNullString(reason))
	t.ReplacedByHash = mapNullString(replacedBy)
	return t, nil
}

func (r *refreshTokensRepo) Create(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID,
		t.UserID,
		t.TokenHash,
		t.CreatedAt.UTC(),
		t.ExpiresAt.UTC(),
		mapOptionalTime(t.RevokedAt),
		mapStringNull(string(t.RevokedReason)),
		mapStringNull(t.ReplacedByHash),
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	t, err := scanRefreshToken(r.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, hash))
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

// UpdateIfActive relies on row-level locking: a concurrent UPDATE of the same
// row waits, then re-evaluates the predicate and matches nothing.
func (r *refreshTokensRepo) UpdateIfActive(
	ctx context.Context,
	hash string,
	revokedAt time.Time,
	successorHash string,
	now time.Time,
) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens
		    SET revoked_at = $1, revoked_reason = $2, replaced_by_hash = $3
		  WHERE token_hash = $4 AND revoked_at IS NULL AND expires_at > $5`,
		revokedAt.UTC(), string(domain.RevokedRotated), successorHash, hash, now.UTC(),
	)
	return affectedOne(res, err)
}

func (r *refreshTokensRepo) RevokeIfActive(
	ctx context.Context,
	hash string,
	revokedAt time.Time,
	reason domain.RevocationReason,
	now time.Time,
) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens
		    SET revoked_at = $1, revoked_reason = $2
		  WHERE token_hash = $3 AND revoked_at IS NULL AND expires_at > $4`,
		revokedAt.UTC(), string(reason), hash, now.UTC(),
	)
	return affectedOne(res, err)
}

func (r *refreshTokensRepo) RevokeAllActiveForUser(
	ctx context.Context,
	userID int64,
	revokedAt time.Time,
	reason domain.RevocationReason,
	now time.Time,
) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens
		    SET revoked_at = $1, revoked_reason = $2
		  WHERE user_id = $3 AND revoked_at IS NULL AND expires_at > $4`,
		revokedAt.UTC(), string(reason), userID, now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) ListByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *refreshTokensRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
